package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"olx-scraper/models"
	"olx-scraper/utils"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }
func year(v int) *int        { return &v }

func sampleListings() []*models.Listing {
	return []*models.Listing{
		{
			Title:              "Toyota Calya",
			Price:              f64(150000000),
			ListingURL:         "https://www.olx.co.id/item/toyota-calya-2018-iid-123",
			Location:           str("Duren Sawit, Jakarta Timur"),
			PostedTime:         str("26 Nov"),
			Installment:        f64(3820833.33),
			InstallmentImputed: true,
			Year:               year(2018),
			LowerKM:            f64(70000),
			UpperKM:            f64(75000),
		},
		{
			Title:      "Honda Jazz, \"RS\"",
			ListingURL: "https://www.olx.co.id/item/honda-jazz-iid-7",
		},
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "olx.db")

	store, err := NewSQLiteWriter(ctx, path, "scrape_data", utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}
	defer store.Close()

	want := sampleListings()
	records, err := store.Write(ctx, want)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(records) != len(want) {
		t.Fatalf("records: got %d, want %d", len(records), len(want))
	}

	got, err := store.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		a, _ := json.Marshal(got)
		b, _ := json.Marshal(want)
		t.Errorf("round trip mismatch:\n got  %s\n want %s", a, b)
	}
}

func TestSQLiteBatchesAndClear(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteWriter(ctx, filepath.Join(t.TempDir(), "olx.db"), "cars", utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}
	defer store.Close()

	var many []*models.Listing
	for i := 0; i < 2*batchSize+7; i++ {
		many = append(many, &models.Listing{Title: "car", Price: f64(float64(i))})
	}
	if _, err := store.Write(ctx, many); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != len(many) {
		t.Fatalf("stored %d rows, want %d", len(got), len(many))
	}
	if *got[len(got)-1].Price != float64(len(many)-1) {
		t.Errorf("rows out of order: last price %v", *got[len(got)-1].Price)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = store.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty table after Clear, got %d rows", len(got))
	}
}

func TestSQLiteWriteEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteWriter(ctx, filepath.Join(t.TempDir(), "olx.db"), "scrape_data", utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}
	defer store.Close()

	records, err := store.Write(ctx, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil records, got %#v", records)
	}
}

func TestInvalidTableName(t *testing.T) {
	_, err := NewSQLiteWriter(context.Background(), filepath.Join(t.TempDir(), "olx.db"), "data; DROP TABLE x", utils.NewNopLogger())
	if err == nil || !strings.Contains(err.Error(), "invalid table name") {
		t.Errorf("expected invalid table name error, got %v", err)
	}
}

func TestRawCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parsed", "calya.csv")
	want := []*models.RawListing{
		{
			Title:         models.TextOf("Toyota Calya"),
			RawPrice:      models.TextOf("Rp 150.000.000"),
			ListingURL:    models.TextOf("/item/toyota-calya-2018-iid-123"),
			Location:      models.TextOf("Duren Sawit, Jakarta Timur"),
			RawPostedTime: models.TextOf("26 Nov"),
			YearMileage:   models.TextOf("2018 - 70.000-75.000 km"),
		},
		{Title: models.TextOf("no details")},
	}

	w, err := NewRawCSVWriter(path)
	if err != nil {
		t.Fatalf("NewRawCSVWriter: %v", err)
	}
	if err := w.WriteRaw(want); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), models.MissingMarker) {
		t.Errorf("absent fields should be written as %q:\n%s", models.MissingMarker, data)
	}

	got, err := ReadRawCSV(path)
	if err != nil {
		t.Fatalf("ReadRawCSV: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestListingCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transformed", "calya_transformed.csv")
	want := sampleListings()

	w, err := NewListingCSVWriter(path)
	if err != nil {
		t.Fatalf("NewListingCSVWriter: %v", err)
	}
	if err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadListingsCSV(path)
	if err != nil {
		t.Fatalf("ReadListingsCSV: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		a, _ := json.Marshal(got)
		b, _ := json.Marshal(want)
		t.Errorf("round trip mismatch:\n got  %s\n want %s", a, b)
	}
}

func TestReadListingsCSVAcceptsFloatYear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.csv")
	content := "title,price,listing_url,location,posted_time,installment,year,lower_km,upper_km,installment_imputed\n" +
		"Avanza,1.5E8,https://www.olx.co.id/item/1,,26 Nov,,2018.0,70000.0,75000.0,True\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadListingsCSV(path)
	if err != nil {
		t.Fatalf("ReadListingsCSV: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}
	l := got[0]
	if l.Year == nil || *l.Year != 2018 {
		t.Errorf("Year: got %v", l.Year)
	}
	if l.Price == nil || *l.Price != 150000000 {
		t.Errorf("Price: got %v", l.Price)
	}
	if l.Location != nil || l.Installment != nil {
		t.Errorf("empty cells should be missing: %+v", l)
	}
	if !l.InstallmentImputed {
		t.Error("InstallmentImputed should parse pandas-style True")
	}
}

func TestReadCSVMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("title,price\nA,1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadRawCSV(path); err == nil || !strings.Contains(err.Error(), "missing required columns") {
		t.Errorf("expected missing columns error, got %v", err)
	}
}

func TestWriteAudit(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "inserted", "empty_inserted.json")
	if err := WriteAudit(empty, nil); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	data, err := os.ReadFile(empty)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("empty audit: got %q, want []", data)
	}

	path := filepath.Join(dir, "inserted", "calya_inserted.json")
	records := []Record{RecordOf(sampleListings()[1])}
	if err := WriteAudit(path, records); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("audit is not a JSON array: %v", err)
	}
	if rows[0]["price"] != nil || rows[0]["year"] != nil {
		t.Errorf("missing values should be null: %v", rows[0])
	}
	if rows[0]["title"] != "Honda Jazz, \"RS\"" {
		t.Errorf("title: got %v", rows[0]["title"])
	}

	back, err := ReadAudit(path)
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if !reflect.DeepEqual(back, records) {
		t.Errorf("ReadAudit mismatch: %+v vs %+v", back, records)
	}
}

func TestRecordOfBlankTextIsNull(t *testing.T) {
	r := RecordOf(&models.Listing{})
	if r.Title != nil || r.ListingURL != nil {
		t.Errorf("blank text should be stored as NULL: %+v", r)
	}
}

func TestPostgresSinglePingFailsFast(t *testing.T) {
	dsn := "host=127.0.0.1 port=1 user=postgres dbname=none sslmode=disable connect_timeout=1"

	start := time.Now()
	_, err := NewPostgresWriter(context.Background(), dsn, "scrape_data", utils.NewNopLogger(), WithPingAttempts(1))
	if err == nil {
		t.Fatal("expected ping error for an unreachable server")
	}
	if !strings.Contains(err.Error(), "after 1 attempts") {
		t.Errorf("expected a single ping attempt, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("single ping took %v", elapsed)
	}
}
