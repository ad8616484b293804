package olx

// Markup hooks of the OLX search results page.
const (
	ItemSelector          = "li[data-aut-id='itemBox']"
	FirstItemLinkSelector = ItemSelector + ":first-child a"
	LoadMoreSelector      = "button[data-aut-id='btnLoadMore']"
	LocationInputSelector = "div[data-aut-id='locationBox'] input"
	LocationItemSelector  = "//div[@data-aut-id='locationItem']//b"

	titleSelector       = "[data-aut-id='itemTitle']"
	priceSelector       = "[data-aut-id='itemPrice']"
	locationSelector    = "[data-aut-id='item-location']"
	detailsSelector     = "[data-aut-id='itemDetails']"
	installmentSelector = "[data-aut-id='itemInstallment']"
	subtitleSelector    = "[data-aut-id='itemSubTitle']"
)
