package services

import (
	"testing"

	"olx-scraper/models"
	"olx-scraper/utils"
)

func f64(v float64) *float64 { return &v }
func year(v int) *int        { return &v }

func sampleListings() []*models.Listing {
	return []*models.Listing{
		{Title: "Toyota Avanza", Price: f64(200000000), Location: ptr("Jakarta Selatan"), Year: year(2019), ListingURL: "https://www.olx.co.id/item/1"},
		{Title: "Daihatsu Ayla", Price: f64(50000000), Location: ptr("Jakarta Selatan"), Year: year(2015), ListingURL: "https://www.olx.co.id/item/2", InstallmentImputed: true, Installment: f64(1273611.11)},
		{Title: "Honda Brio", Price: f64(120000000), Location: ptr("Bandung"), Year: year(2021), ListingURL: "https://www.olx.co.id/item/3"},
		{Title: "Toyota Fortuner", Price: f64(300000000), Location: ptr("Surabaya"), ListingURL: "https://www.olx.co.id/item/4"},
		{Title: "Suzuki Ertiga", Location: ptr("Bandung"), Year: year(2018), ListingURL: "https://www.olx.co.id/item/2"},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.TotalListings != 5 {
		t.Errorf("TotalListings: got %d, want 5", r.TotalListings)
	}
	if r.PricedListings != 4 {
		t.Errorf("PricedListings: got %d, want 4", r.PricedListings)
	}
	if r.ImputedInstallment != 1 {
		t.Errorf("ImputedInstallment: got %d, want 1", r.ImputedInstallment)
	}
	if r.DuplicateURLs != 1 {
		t.Errorf("DuplicateURLs: got %d, want 1", r.DuplicateURLs)
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	wantAvg := 167500000.0
	if r.AveragePrice != wantAvg {
		t.Errorf("AveragePrice: got %.2f, want %.2f", r.AveragePrice, wantAvg)
	}
	if r.MinPrice != 50000000 {
		t.Errorf("MinPrice: got %.2f, want 50000000", r.MinPrice)
	}
	if r.MaxPrice != 300000000 {
		t.Errorf("MaxPrice: got %.2f, want 300000000", r.MaxPrice)
	}
}

func TestInsightMostExpensive(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.MostExpensive == nil {
		t.Fatal("MostExpensive should not be nil")
	}
	if r.MostExpensive.Title != "Toyota Fortuner" {
		t.Errorf("MostExpensive: got %q, want %q", r.MostExpensive.Title, "Toyota Fortuner")
	}
}

func TestInsightYearRange(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.OldestYear != 2015 || r.NewestYear != 2021 {
		t.Errorf("year range: got %d-%d, want 2015-2021", r.OldestYear, r.NewestYear)
	}
}

func TestInsightLocationGrouping(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(sampleListings())
	if r.ListingsByLocation["Jakarta Selatan"] != 2 {
		t.Errorf("Jakarta Selatan count: got %d, want 2", r.ListingsByLocation["Jakarta Selatan"])
	}
	if r.ListingsByLocation["Bandung"] != 2 {
		t.Errorf("Bandung count: got %d, want 2", r.ListingsByLocation["Bandung"])
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	r := svc.Generate(nil)
	if r.TotalListings != 0 {
		t.Errorf("expected 0 total listings for empty input")
	}
	if r.MostExpensive != nil {
		t.Errorf("expected no most expensive listing for empty input")
	}
}

func TestRupiah(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{150000000, "150.000.000"},
		{1000, "1.000"},
		{999, "999"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := rupiah(tt.in); got != tt.want {
			t.Errorf("rupiah(%.0f) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
