package olx

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"olx-scraper/models"
	"olx-scraper/utils"
)

// Parser extracts raw listing fields from a search results page. It is
// purely structural: a missing sub-element gives an absent field and never
// drops the listing.
type Parser struct {
	logger *utils.Logger
}

func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse returns one RawListing per listing card, in document order.
func (p *Parser) Parse(html string) ([]*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("olx: parse html: %w", err)
	}

	items := doc.Find(ItemSelector)
	p.logger.Info("[parser] Found %d listing elements", items.Length())

	listings := make([]*models.RawListing, 0, items.Length())
	items.Each(func(i int, item *goquery.Selection) {
		listings = append(listings, p.parseItem(i, item))
	})
	return listings, nil
}

func (p *Parser) parseItem(idx int, item *goquery.Selection) *models.RawListing {
	raw := &models.RawListing{
		Title:          text(item.Find(titleSelector)),
		RawPrice:       text(item.Find(priceSelector)),
		RawInstallment: text(item.Find(installmentSelector)),
		YearMileage:    joinedText(item.Find(subtitleSelector)),
	}

	if href, ok := item.Find("a[href]").First().Attr("href"); ok {
		raw.ListingURL = present(href)
	}

	raw.Location, raw.RawPostedTime = locationAndTime(item)

	if !raw.Title.Valid {
		p.logger.Debug("[parser] Listing #%d: missing title", idx)
	}
	if !raw.RawPrice.Valid {
		p.logger.Debug("[parser] Listing #%d: missing price", idx)
	}
	if !raw.ListingURL.Valid {
		p.logger.Debug("[parser] Listing #%d: missing URL <a href>", idx)
	}
	return raw
}

// locationAndTime handles both card layouts:
//
//	<span data-aut-id="item-location">Jetis, Yogyakarta</span><span><span>18 Nov</span></span>
//	<div data-aut-id="itemDetails">Kuta Alam<span>Hari ini</span></div>
func locationAndTime(item *goquery.Selection) (models.Text, models.Text) {
	if loc := item.Find(locationSelector).First(); loc.Length() > 0 {
		location := text(loc)
		var posted models.Text
		if sib := loc.Next(); sib.Length() > 0 {
			inner := sib.Find("span").First()
			if inner.Length() == 0 {
				inner = sib
			}
			posted = text(inner)
		}
		return location, posted
	}

	details := item.Find(detailsSelector).First()
	if details.Length() == 0 {
		return models.Text{}, models.Text{}
	}

	var location models.Text
	if first := details.Contents().First(); goquery.NodeName(first) == "#text" {
		location = present(first.Text())
	} else {
		location = joinedText(details)
	}
	return location, text(details.Find("span").First())
}

// text returns the trimmed text of the first match, absent when there is no
// match or the text is blank.
func text(sel *goquery.Selection) models.Text {
	if sel.Length() == 0 {
		return models.Text{}
	}
	return present(sel.First().Text())
}

// joinedText joins the trimmed text nodes under the first match with single
// spaces, so "<span>2018</span> - <span>70.000-75.000 km</span>" reads
// "2018 - 70.000-75.000 km".
func joinedText(sel *goquery.Selection) models.Text {
	if sel.Length() == 0 {
		return models.Text{}
	}
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(sel.First())
	return present(strings.Join(parts, " "))
}

func present(s string) models.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Text{}
	}
	return models.TextOf(s)
}
