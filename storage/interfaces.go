package storage

import (
	"context"

	"olx-scraper/models"
)

// ListingStore is the relational backend for normalized listings.
type ListingStore interface {
	// Write inserts listings in one transaction and returns the rows exactly
	// as inserted.
	Write(ctx context.Context, listings []*models.Listing) ([]Record, error)
	Clear(ctx context.Context) error
	FetchAll(ctx context.Context) ([]*models.Listing, error)
	Close() error
}

// ListingWriter persists normalized listings to a flat file.
type ListingWriter interface {
	Write(listings []*models.Listing) error
	Close() error
}

// RawListingWriter persists unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
