package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"olx-scraper/models"
)

// RawColumns is the header of the parsed CSV.
var RawColumns = []string{
	"title", "price", "listing_url", "location", "posted_time", "installment", "year_mileage",
}

// ListingColumns is the header of the transformed CSV.
var ListingColumns = []string{
	"title", "price", "listing_url", "location", "posted_time", "installment",
	"year", "lower_km", "upper_km", "installment_imputed",
}

// csvFile is a CSV file with its header already written. It is safe for
// concurrent use.
type csvFile struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// newCSVFile creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func newCSVFile(path string, header []string) (*csvFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &csvFile{file: f, writer: w}, nil
}

func (c *csvFile) writeRows(rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range rows {
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *csvFile) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return err
	}
	return c.file.Close()
}

// RawCSVWriter writes raw listings, absent fields as models.MissingMarker.
type RawCSVWriter struct {
	*csvFile
}

func NewRawCSVWriter(path string) (*RawCSVWriter, error) {
	f, err := newCSVFile(path, RawColumns)
	if err != nil {
		return nil, err
	}
	return &RawCSVWriter{f}, nil
}

func (w *RawCSVWriter) WriteRaw(listings []*models.RawListing) error {
	rows := make([][]string, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, []string{
			l.Title.Encode(),
			l.RawPrice.Encode(),
			l.ListingURL.Encode(),
			l.Location.Encode(),
			l.RawPostedTime.Encode(),
			l.RawInstallment.Encode(),
			l.YearMileage.Encode(),
		})
	}
	return w.writeRows(rows)
}

// ListingCSVWriter writes normalized listings, missing values as empty cells.
type ListingCSVWriter struct {
	*csvFile
}

func NewListingCSVWriter(path string) (*ListingCSVWriter, error) {
	f, err := newCSVFile(path, ListingColumns)
	if err != nil {
		return nil, err
	}
	return &ListingCSVWriter{f}, nil
}

func (w *ListingCSVWriter) Write(listings []*models.Listing) error {
	rows := make([][]string, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, []string{
			l.Title,
			formatFloat(l.Price),
			l.ListingURL,
			formatString(l.Location),
			formatString(l.PostedTime),
			formatFloat(l.Installment),
			formatInt(l.Year),
			formatFloat(l.LowerKM),
			formatFloat(l.UpperKM),
			strconv.FormatBool(l.InstallmentImputed),
		})
	}
	return w.writeRows(rows)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
