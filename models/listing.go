package models

// MissingMarker is how an absent raw field is written to the parsed CSV.
const MissingMarker = "data not found"

// Text is an optional piece of scraped text. The zero value is absent.
type Text struct {
	String string
	Valid  bool
}

// TextOf returns a present Text.
func TextOf(s string) Text {
	return Text{String: s, Valid: true}
}

// Encode renders the value for the parsed CSV.
func (t Text) Encode() string {
	if !t.Valid {
		return MissingMarker
	}
	return t.String
}

// DecodeText is the inverse of Encode. Empty cells are treated as absent.
func DecodeText(s string) Text {
	if s == "" || s == MissingMarker {
		return Text{}
	}
	return TextOf(s)
}

// RawListing holds the unprocessed fields of one listing card exactly as they
// appear in the page markup. It is written to the parsed CSV before any
// normalization.
type RawListing struct {
	Title          Text
	RawPrice       Text
	ListingURL     Text
	Location       Text
	RawPostedTime  Text
	RawInstallment Text
	YearMileage    Text
}

// Listing is the normalized record ready for storage. Nil pointers are
// missing values.
type Listing struct {
	Title              string   `json:"title"`
	Price              *float64 `json:"price"`
	ListingURL         string   `json:"listing_url"`
	Location           *string  `json:"location"`
	PostedTime         *string  `json:"posted_time"`
	Installment        *float64 `json:"installment"`
	InstallmentImputed bool     `json:"installment_imputed"`
	Year               *int     `json:"year"`
	LowerKM            *float64 `json:"lower_km"`
	UpperKM            *float64 `json:"upper_km"`
}

// InsightReport holds the computed analytics over the normalized dataset.
type InsightReport struct {
	TotalListings      int
	PricedListings     int
	ImputedInstallment int
	AveragePrice       float64
	MinPrice           float64
	MaxPrice           float64
	MostExpensive      *Listing
	OldestYear         int
	NewestYear         int
	DuplicateURLs      int
	ListingsByLocation map[string]int
}
