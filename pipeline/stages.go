package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"olx-scraper/config"
	"olx-scraper/models"
	"olx-scraper/scraper/olx"
	"olx-scraper/services"
	"olx-scraper/storage"
	"olx-scraper/utils"
)

// Acquirer fetches the fully revealed search results markup for a keyword.
type Acquirer interface {
	Scrape(ctx context.Context, keyword string) (*olx.Result, error)
}

// StoreOpener connects to the listing database.
type StoreOpener func(ctx context.Context) (storage.ListingStore, error)

// DefaultStoreOpener opens the backend selected by cfg.DBDriver.
func DefaultStoreOpener(cfg *config.Config, logger *utils.Logger) StoreOpener {
	return func(ctx context.Context) (storage.ListingStore, error) {
		s, err := storage.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// ScrapeStage saves the rendered search page for a keyword.
type ScrapeStage struct {
	acquirer Acquirer
	keyword  string
	out      string
	logger   *utils.Logger
}

func NewScrapeStage(a Acquirer, keyword, htmlPath string, logger *utils.Logger) *ScrapeStage {
	return &ScrapeStage{acquirer: a, keyword: keyword, out: htmlPath, logger: logger}
}

func (s *ScrapeStage) Name() string   { return "Scrape" }
func (s *ScrapeStage) Output() string { return s.out }

func (s *ScrapeStage) Run(ctx context.Context) (int, error) {
	res, err := s.acquirer.Scrape(ctx, s.keyword)
	if err != nil {
		return 0, err
	}
	if err := writeFile(s.out, []byte(res.HTML)); err != nil {
		return 0, err
	}
	s.logger.Info("[Scrape] HTML saved to %s (%d items rendered, stop=%s)",
		s.out, res.Load.ItemsRendered, res.Stop)
	return res.Load.ItemsRendered, nil
}

// ParseStage extracts raw listings from saved markup into the parsed CSV.
type ParseStage struct {
	parser *olx.Parser
	in     string
	out    string
	logger *utils.Logger
}

func NewParseStage(p *olx.Parser, htmlPath, parsedPath string, logger *utils.Logger) *ParseStage {
	return &ParseStage{parser: p, in: htmlPath, out: parsedPath, logger: logger}
}

func (s *ParseStage) Name() string   { return "Parse" }
func (s *ParseStage) Output() string { return s.out }

func (s *ParseStage) Run(ctx context.Context) (int, error) {
	s.logger.Info("[Parse] Reading HTML from %s", s.in)
	html, err := os.ReadFile(s.in)
	if err != nil {
		return 0, fmt.Errorf("read html: %w", err)
	}

	listings, err := s.parser.Parse(string(html))
	if err != nil {
		return 0, err
	}

	w, err := storage.NewRawCSVWriter(s.out)
	if err != nil {
		return 0, err
	}
	if err := writeRaw(w, listings); err != nil {
		return 0, err
	}
	s.logger.Info("[Parse] Parsing done. %d rows written to %s", len(listings), s.out)
	return len(listings), nil
}

// TransformStage normalizes the parsed CSV into the transformed CSV.
type TransformStage struct {
	cleaner *services.Cleaner
	in      string
	out     string
	logger  *utils.Logger
}

func NewTransformStage(c *services.Cleaner, parsedPath, transformedPath string, logger *utils.Logger) *TransformStage {
	return &TransformStage{cleaner: c, in: parsedPath, out: transformedPath, logger: logger}
}

func (s *TransformStage) Name() string   { return "Transform" }
func (s *TransformStage) Output() string { return s.out }

func (s *TransformStage) Run(ctx context.Context) (int, error) {
	s.logger.Info("[Transform] Transforming parsed CSV %s", s.in)
	raw, err := storage.ReadRawCSV(s.in)
	if err != nil {
		return 0, err
	}

	listings := s.cleaner.Clean(raw)

	w, err := storage.NewListingCSVWriter(s.out)
	if err != nil {
		return 0, err
	}
	if err := writeListings(w, listings); err != nil {
		return 0, err
	}
	s.logger.Info("[Transform] Completed: %d rows saved to %s", len(listings), s.out)
	return len(listings), nil
}

// LoadStage inserts the transformed CSV into the database and writes the
// audit snapshot of inserted rows.
type LoadStage struct {
	open    StoreOpener
	in      string
	out     string
	replace bool
	logger  *utils.Logger

	loaded []*models.Listing
}

// NewLoadStage creates a LoadStage. With replace the table is cleared first.
func NewLoadStage(open StoreOpener, transformedPath, insertedPath string, replace bool, logger *utils.Logger) *LoadStage {
	return &LoadStage{open: open, in: transformedPath, out: insertedPath, replace: replace, logger: logger}
}

func (s *LoadStage) Name() string   { return "Load" }
func (s *LoadStage) Output() string { return s.out }

// Loaded returns the listings read by the last Run.
func (s *LoadStage) Loaded() []*models.Listing { return s.loaded }

func (s *LoadStage) Run(ctx context.Context) (int, error) {
	s.logger.Info("[Load] Reading transformed CSV from %s", s.in)
	listings, err := storage.ReadListingsCSV(s.in)
	if err != nil {
		return 0, err
	}
	s.loaded = listings

	if len(listings) == 0 {
		s.logger.Info("[Load] No data to insert. Skipping DB insert.")
		return 0, storage.WriteAudit(s.out, nil)
	}

	store, err := s.open(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			s.logger.Warn("[Load] Closing store: %v", err)
		}
	}()

	if s.replace {
		if err := store.Clear(ctx); err != nil {
			return 0, err
		}
		s.logger.Info("[Load] Cleared existing rows")
	}

	records, err := store.Write(ctx, listings)
	if err != nil {
		return 0, err
	}
	if err := storage.WriteAudit(s.out, records); err != nil {
		return 0, err
	}
	s.logger.Info("[Load] Inserted data JSON saved to %s", s.out)
	return len(records), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

func writeRaw(w storage.RawListingWriter, listings []*models.RawListing) error {
	if err := w.WriteRaw(listings); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func writeListings(w storage.ListingWriter, listings []*models.Listing) error {
	if err := w.Write(listings); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
