package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"olx-scraper/config"
	"olx-scraper/scraper"
	"olx-scraper/scraper/olx"
	"olx-scraper/services"
	"olx-scraper/storage"
	"olx-scraper/utils"
)

const searchPage = `<html><body><ul>
  <li data-aut-id="itemBox">
    <a href="/item/toyota-calya-2018-iid-123"></a>
    <span data-aut-id="itemTitle">Toyota Calya</span>
    <span data-aut-id="itemPrice">Rp 150.000.000</span>
    <span data-aut-id="item-location">Duren Sawit, Jakarta Timur</span>
    <span><span>26 Nov</span></span>
    <span data-aut-id="itemInstallment">8,9jt-an/bln</span>
    <span data-aut-id="itemSubTitle">2018 - 70.000-75.000 km</span>
  </li>
  <li data-aut-id="itemBox">
    <a href="/item/honda-jazz-iid-7">
      <div data-aut-id="itemTitle">Honda Jazz RS</div>
      <span data-aut-id="itemPrice">Rp 100.000.000</span>
      <div data-aut-id="itemDetails">Kuta Alam<span>Hari ini</span></div>
      <div data-aut-id="itemSubTitle">2015 - 100.000-105.000 km</div>
    </a>
  </li>
</ul></body></html>`

type fakeAcquirer struct {
	html  string
	items int
	err   error
	calls int
}

func (f *fakeAcquirer) Scrape(ctx context.Context, keyword string) (*olx.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &olx.Result{
		HTML: f.html,
		Load: scraper.LoadSession{ItemsRendered: f.items, Attempts: 3},
		Stop: scraper.StopNoGrowth,
	}, nil
}

type fixture struct {
	paths  config.Paths
	dbPath string
	opens  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return &fixture{
		paths:  cfg.Paths("Toyota Calya"),
		dbPath: filepath.Join(cfg.DataDir, "olx.db"),
	}
}

func (f *fixture) opener() StoreOpener {
	return func(ctx context.Context) (storage.ListingStore, error) {
		f.opens++
		s, err := storage.NewSQLiteWriter(ctx, f.dbPath, "scrape_data", utils.NewNopLogger())
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (f *fixture) stages(a Acquirer, replace bool) []Stage {
	logger := utils.NewNopLogger()
	cleaner := services.NewCleaner(config.Default(), logger).WithClock(func() time.Time {
		return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	})
	return []Stage{
		NewScrapeStage(a, "Toyota Calya", f.paths.HTML, logger),
		NewParseStage(olx.NewParser(logger), f.paths.HTML, f.paths.Parsed, logger),
		NewTransformStage(cleaner, f.paths.Parsed, f.paths.Transformed, logger),
		NewLoadStage(f.opener(), f.paths.Transformed, f.paths.Inserted, replace, logger),
	}
}

func (f *fixture) storedRows(t *testing.T) int {
	t.Helper()
	s, err := storage.NewSQLiteWriter(context.Background(), f.dbPath, "scrape_data", utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}
	defer s.Close()
	rows, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	return len(rows)
}

func TestRunnerFullPipeline(t *testing.T) {
	f := newFixture(t)
	acq := &fakeAcquirer{html: searchPage, items: 2}

	report, err := NewRunner(utils.NewNopLogger(), false, f.stages(acq, false)...).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantStages := []string{"Scrape", "Parse", "Transform", "Load"}
	if len(report.Stages) != len(wantStages) {
		t.Fatalf("expected %d stage reports, got %d", len(wantStages), len(report.Stages))
	}
	for i, sr := range report.Stages {
		if sr.Name != wantStages[i] || sr.Skipped || sr.Records != 2 {
			t.Errorf("stage %d: got %+v", i, sr)
		}
	}
	if report.Records() != 2 || report.Empty() {
		t.Errorf("Records() = %d, Empty() = %v", report.Records(), report.Empty())
	}

	records, err := storage.ReadAudit(f.paths.Inserted)
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("audit rows: got %d, want 2", len(records))
	}
	if *records[0].ListingURL != "https://www.olx.co.id/item/toyota-calya-2018-iid-123" {
		t.Errorf("listing url: got %q", *records[0].ListingURL)
	}
	if records[0].InstallmentImputed || *records[0].Installment != 8900000 {
		t.Errorf("explicit installment: got %v imputed=%v", *records[0].Installment, records[0].InstallmentImputed)
	}
	if !records[1].InstallmentImputed || *records[1].Installment != 2547222.22 {
		t.Errorf("imputed installment: got %v imputed=%v", records[1].Installment, records[1].InstallmentImputed)
	}

	if got := f.storedRows(t); got != 2 {
		t.Errorf("stored rows: got %d, want 2", got)
	}
}

func TestRunnerSkipsCompletedStages(t *testing.T) {
	f := newFixture(t)
	acq := &fakeAcquirer{html: searchPage, items: 2}
	logger := utils.NewNopLogger()

	if _, err := NewRunner(logger, false, f.stages(acq, false)...).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	report, err := NewRunner(logger, false, f.stages(acq, false)...).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if acq.calls != 1 {
		t.Errorf("scraper called %d times, want 1", acq.calls)
	}
	if len(report.Ran()) != 0 || report.Records() != -1 || report.Empty() {
		t.Errorf("expected every stage skipped: %+v", report.Stages)
	}

	// Only the load stage is pending once its audit file is gone.
	if err := os.Remove(f.paths.Inserted); err != nil {
		t.Fatal(err)
	}
	report, err = NewRunner(logger, false, f.stages(acq, true)...).Run(context.Background())
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	ran := report.Ran()
	if len(ran) != 1 || ran[0].Name != "Load" {
		t.Errorf("expected only Load to run, got %+v", ran)
	}
	if acq.calls != 1 {
		t.Errorf("scraper called %d times, want 1", acq.calls)
	}
	if got := f.storedRows(t); got != 2 {
		t.Errorf("replace should leave 2 rows, got %d", got)
	}
}

func TestRunnerForceReruns(t *testing.T) {
	f := newFixture(t)
	acq := &fakeAcquirer{html: searchPage, items: 2}
	logger := utils.NewNopLogger()

	for i := 0; i < 2; i++ {
		if _, err := NewRunner(logger, true, f.stages(acq, false)...).Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if acq.calls != 2 {
		t.Errorf("scraper called %d times, want 2", acq.calls)
	}
	if got := f.storedRows(t); got != 4 {
		t.Errorf("append mode should keep both runs, got %d rows", got)
	}
}

func TestRunnerEmptyPage(t *testing.T) {
	f := newFixture(t)
	acq := &fakeAcquirer{html: "<html><body><ul></ul></body></html>"}

	report, err := NewRunner(utils.NewNopLogger(), false, f.stages(acq, false)...).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Empty() {
		t.Errorf("expected empty report, got %+v", report.Stages)
	}
	if f.opens != 0 {
		t.Errorf("database opened %d times for an empty run", f.opens)
	}
	data, err := os.ReadFile(f.paths.Inserted)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("audit: got %q, want []", data)
	}
}

func TestRunnerStopsOnFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("browser crashed")
	acq := &fakeAcquirer{err: boom}

	report, err := NewRunner(utils.NewNopLogger(), false, f.stages(acq, false)...).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected scrape error, got %v", err)
	}
	if len(report.Ran()) != 0 {
		t.Errorf("no stage should complete: %+v", report.Stages)
	}
	if _, err := os.Stat(f.paths.Parsed); !os.IsNotExist(err) {
		t.Errorf("parse stage should not have run: %v", err)
	}
}

type partialStage struct{ out string }

func (s partialStage) Name() string   { return "Partial" }
func (s partialStage) Output() string { return s.out }
func (s partialStage) Run(ctx context.Context) (int, error) {
	if err := os.WriteFile(s.out, []byte("half"), 0644); err != nil {
		return 0, err
	}
	return 0, errors.New("disk full")
}

func TestRunnerRemovesPartialOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "partial.csv")
	_, err := NewRunner(utils.NewNopLogger(), false, partialStage{out: out}).Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("partial output should be removed, stat err = %v", err)
	}
}

func TestRunnerHonorsCancel(t *testing.T) {
	f := newFixture(t)
	acq := &fakeAcquirer{html: searchPage, items: 2}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewRunner(utils.NewNopLogger(), false, f.stages(acq, false)...).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if acq.calls != 0 {
		t.Errorf("scraper should not run after cancel")
	}
}
