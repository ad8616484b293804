package services

import (
	"fmt"
	"sort"
	"strings"

	"olx-scraper/models"
	"olx-scraper/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByLocation: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	seen := utils.NewURLSet()

	var total float64
	for _, l := range listings {
		if l.ListingURL != "" && !seen.Add(l.ListingURL) {
			report.DuplicateURLs++
		}
		if l.InstallmentImputed {
			report.ImputedInstallment++
		}
		if l.Location != nil {
			report.ListingsByLocation[*l.Location]++
		}
		if l.Year != nil {
			if report.OldestYear == 0 || *l.Year < report.OldestYear {
				report.OldestYear = *l.Year
			}
			if *l.Year > report.NewestYear {
				report.NewestYear = *l.Year
			}
		}

		// Price stats (only listings with a price)
		if l.Price == nil {
			continue
		}
		p := *l.Price
		if report.PricedListings == 0 || p < report.MinPrice {
			report.MinPrice = p
		}
		if report.PricedListings == 0 || p > report.MaxPrice {
			report.MaxPrice = p
			report.MostExpensive = l
		}
		report.PricedListings++
		total += p
	}

	if report.PricedListings > 0 {
		report.AveragePrice = round2(total / float64(report.PricedListings))
	}
	if report.DuplicateURLs > 0 {
		s.logger.Warn("[insights] %d listings share a URL with an earlier one (%d unique URLs)",
			report.DuplicateURLs, seen.Size())
	}

	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 OLX USED-CAR INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total listings         : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Printf("  Listings with a price  : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Printf("  Imputed installments   : \033[1m%d\033[0m\n", r.ImputedInstallment)
	fmt.Printf("  Duplicate URLs         : \033[1m%d\033[0m\n", r.DuplicateURLs)
	if r.OldestYear > 0 {
		fmt.Printf("  Model years            : \033[1m%d – %d\033[0m\n", r.OldestYear, r.NewestYear)
	}
	fmt.Println()

	// Price Stats
	fmt.Printf("\033[1;33m  Price Statistics (IDR)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Printf("  Average price : \033[1;32mRp %s\033[0m\n", rupiah(r.AveragePrice))
		fmt.Printf("  Minimum price : \033[1;32mRp %s\033[0m\n", rupiah(r.MinPrice))
		fmt.Printf("  Maximum price : \033[1;32mRp %s\033[0m\n", rupiah(r.MaxPrice))
	} else {
		fmt.Printf("  No price data available\n")
	}
	fmt.Println()

	// Most Expensive
	if r.MostExpensive != nil {
		fmt.Printf("\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s\n", truncate(r.MostExpensive.Title, 50))
		if r.MostExpensive.Location != nil {
			fmt.Printf("  Location : %s\n", *r.MostExpensive.Location)
		}
		fmt.Printf("  Price    : \033[1;31mRp %s\033[0m\n", rupiah(*r.MostExpensive.Price))
		if r.MostExpensive.Installment != nil {
			fmt.Printf("  Monthly  : Rp %s\n", rupiah(*r.MostExpensive.Installment))
		}
		fmt.Println()
	}

	// Listings by Location
	fmt.Printf("\033[1;33m  Listings by Location\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ListingsByLocation) == 0 {
		fmt.Printf("  No location data\n")
	} else {
		// Sort locations by count descending, then name
		type locCount struct {
			loc   string
			count int
		}
		var locs []locCount
		for loc, cnt := range r.ListingsByLocation {
			locs = append(locs, locCount{loc, cnt})
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].count != locs[j].count {
				return locs[i].count > locs[j].count
			}
			return locs[i].loc < locs[j].loc
		})
		if len(locs) > 10 {
			locs = locs[:10]
		}
		for _, lc := range locs {
			bar := strings.Repeat("█", min(lc.count, 30))
			fmt.Printf("  %-30s %s (%d)\n", truncate(lc.loc, 28), bar, lc.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// rupiah formats an amount with dot thousands separators: 150000000 -> 150.000.000.
func rupiah(f float64) string {
	s := fmt.Sprintf("%.0f", f)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
