package services

import (
	"testing"
	"time"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"Rp 450.000.000", 450000000, true},
		{"Rp 98.500.000", 98500000, true},
		{"450000000", 450000000, true},
		{"Rp", 0, false},
		{"", 0, false},
		{"Hubungi penjual", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParsePrice(%q) = %.0f, %v; want %.0f, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseYearMileage(t *testing.T) {
	tests := []struct {
		raw    string
		want   YearMileage
		wantOK bool
	}{
		{"2018 - 70.000-75.000 km", YearMileage{2018, 70000, 75000}, true},
		{"2021 - 0-5.000 km", YearMileage{2021, 0, 5000}, true},
		{"2015 • 100.000-105.000 km", YearMileage{2015, 100000, 105000}, true},
		{"  2019 - 10.000-15.000 KM ", YearMileage{2019, 10000, 15000}, true},
		{"2018 - 75.000-70.000 km", YearMileage{}, false},
		{"2018", YearMileage{}, false},
		{"70.000-75.000 km", YearMileage{}, false},
		{"2018 - 70.000 km", YearMileage{}, false},
		{"", YearMileage{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseYearMileage(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseYearMileage(%q) = %+v, %v; want %+v, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseInstallment(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"8,9jt-an/bln", 8900000, true},
		{"Rp 3,2 jt/bln", 3200000, true},
		{"5jt-an/bln", 5000000, true},
		{"12,45 juta/bulan", 12450000, true},
		{"750rb/bln", 750000, true},
		{"Rp 8.900.000/bln", 8900000, true},
		{"1.250rb/bln", 1250000, true},
		{"2.500 ribu/bln", 2500000, true},
		{"1,250jt/bln", 1250000, true},
		{"8.9 juta/bln", 8900000, true},
		{"9223372036854jt", 9223372036854000000, true},
		{"9223372036855jt", 0, false},
		{"10000000000000jt/bln", 0, false},
		{"cicilan ringan", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseInstallment(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseInstallment(%q) = %.2f, %v; want %.2f, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPostedTimeNormalize(t *testing.T) {
	fixed := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	n := PostedTimeNormalizer{MaxLen: 7, Now: func() time.Time { return fixed }}

	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"12 Mar", "12 Mar", true},
		{"3 Jan", "3 Jan", true},
		{" 28  Des ", "28 Des", true},
		{"Hari ini", "5 Mar", true},
		{"today", "5 Mar", true},
		{"Kemarin", "4 Mar", true},
		{"7 hari yang lalu", "27 Feb", true},
		{"1 day ago", "4 Mar", true},
		{"Diposting 12 Mar", "", false},
		{"32 Mar", "", false},
		{"Maret", "", false},
		{"", "", false},
		{"yesterday at noon", "", false},
	}

	for _, tt := range tests {
		got, ok := n.Normalize(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
