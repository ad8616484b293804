package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"olx-scraper/models"
)

// csvTable is a CSV file read into memory with its header indexed by name.
type csvTable struct {
	index map[string]int
	rows  [][]string
}

func readCSV(path string, required []string) (*csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv: %q has no header", path)
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header of %q: %w", path, err)
	}

	t := &csvTable{index: make(map[string]int, len(header))}
	for i, name := range header {
		t.index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv: %q is missing required columns %v", path, missing)
	}

	t.rows, err = r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	return t, nil
}

func (t *csvTable) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// ReadRawCSV loads a parsed CSV written by RawCSVWriter.
func ReadRawCSV(path string) ([]*models.RawListing, error) {
	t, err := readCSV(path, RawColumns)
	if err != nil {
		return nil, err
	}

	listings := make([]*models.RawListing, 0, len(t.rows))
	for _, row := range t.rows {
		listings = append(listings, &models.RawListing{
			Title:          models.DecodeText(t.get(row, "title")),
			RawPrice:       models.DecodeText(t.get(row, "price")),
			ListingURL:     models.DecodeText(t.get(row, "listing_url")),
			Location:       models.DecodeText(t.get(row, "location")),
			RawPostedTime:  models.DecodeText(t.get(row, "posted_time")),
			RawInstallment: models.DecodeText(t.get(row, "installment")),
			YearMileage:    models.DecodeText(t.get(row, "year_mileage")),
		})
	}
	return listings, nil
}

// ReadListingsCSV loads a transformed CSV written by ListingCSVWriter.
func ReadListingsCSV(path string) ([]*models.Listing, error) {
	t, err := readCSV(path, ListingColumns[:9])
	if err != nil {
		return nil, err
	}

	listings := make([]*models.Listing, 0, len(t.rows))
	for n, row := range t.rows {
		l := &models.Listing{
			Title:      t.get(row, "title"),
			ListingURL: t.get(row, "listing_url"),
			Location:   parseString(t.get(row, "location")),
			PostedTime: parseString(t.get(row, "posted_time")),
		}
		var perr error
		if l.Price, perr = parseFloat(t.get(row, "price")); perr != nil {
			return nil, fmt.Errorf("csv: %q row %d: price: %w", path, n+2, perr)
		}
		if l.Installment, perr = parseFloat(t.get(row, "installment")); perr != nil {
			return nil, fmt.Errorf("csv: %q row %d: installment: %w", path, n+2, perr)
		}
		if l.Year, perr = parseYear(t.get(row, "year")); perr != nil {
			return nil, fmt.Errorf("csv: %q row %d: year: %w", path, n+2, perr)
		}
		if l.LowerKM, perr = parseFloat(t.get(row, "lower_km")); perr != nil {
			return nil, fmt.Errorf("csv: %q row %d: lower_km: %w", path, n+2, perr)
		}
		if l.UpperKM, perr = parseFloat(t.get(row, "upper_km")); perr != nil {
			return nil, fmt.Errorf("csv: %q row %d: upper_km: %w", path, n+2, perr)
		}
		if s := t.get(row, "installment_imputed"); s != "" {
			if l.InstallmentImputed, perr = strconv.ParseBool(s); perr != nil {
				return nil, fmt.Errorf("csv: %q row %d: installment_imputed: %w", path, n+2, perr)
			}
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func parseString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseYear accepts "2018" as well as a float-typed "2018.0".
func parseYear(s string) (*int, error) {
	f, err := parseFloat(s)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, fmt.Errorf("not a whole year: %q", s)
	}
	y := int(*f)
	return &y, nil
}
