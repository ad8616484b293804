package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"olx-scraper/models"
)

// Record is one row as stored in the database. Missing values are nil so
// they serialize as JSON null and insert as SQL NULL.
type Record struct {
	Title              *string  `json:"title"`
	Price              *float64 `json:"price"`
	ListingURL         *string  `json:"listing_url"`
	Location           *string  `json:"location"`
	PostedTime         *string  `json:"posted_time"`
	Installment        *float64 `json:"installment"`
	InstallmentImputed bool     `json:"installment_imputed"`
	Year               *int     `json:"year"`
	LowerKM            *float64 `json:"lower_km"`
	UpperKM            *float64 `json:"upper_km"`
}

// RecordOf coerces a listing to its storage shape.
func RecordOf(l *models.Listing) Record {
	return Record{
		Title:              nonEmpty(l.Title),
		Price:              l.Price,
		ListingURL:         nonEmpty(l.ListingURL),
		Location:           l.Location,
		PostedTime:         l.PostedTime,
		Installment:        l.Installment,
		InstallmentImputed: l.InstallmentImputed,
		Year:               l.Year,
		LowerKM:            l.LowerKM,
		UpperKM:            l.UpperKM,
	}
}

// Listing converts a stored row back to a listing.
func (r Record) Listing() *models.Listing {
	l := &models.Listing{
		Price:              r.Price,
		Location:           r.Location,
		PostedTime:         r.PostedTime,
		Installment:        r.Installment,
		InstallmentImputed: r.InstallmentImputed,
		Year:               r.Year,
		LowerKM:            r.LowerKM,
		UpperKM:            r.UpperKM,
	}
	if r.Title != nil {
		l.Title = *r.Title
	}
	if r.ListingURL != nil {
		l.ListingURL = *r.ListingURL
	}
	return l
}

// WriteAudit saves the inserted rows as an indented JSON array. An empty run
// writes "[]".
func WriteAudit(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("audit: create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("audit: write %q: %w", path, err)
	}
	return nil
}

// ReadAudit loads an audit snapshot.
func ReadAudit(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audit: read %q: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("audit: decode %q: %w", path, err)
	}
	return records, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
