package services

import (
	"math"

	"olx-scraper/config"
)

// Imputer estimates a monthly installment from the listing price using a
// flat-interest affordability model.
type Imputer struct {
	cfg config.ImputationConfig
}

// NewImputer creates an Imputer for the given model constants.
func NewImputer(cfg config.ImputationConfig) *Imputer {
	return &Imputer{cfg: cfg}
}

// Estimate returns the monthly payment rounded to two decimals:
//
//	principal = price * (1 - down payment)
//	total     = principal * (1 + additional costs + interest)
//	monthly   = total / tenor
//
// It reports false when there is no positive price to work from.
func (im *Imputer) Estimate(price float64) (float64, bool) {
	if price <= 0 || im.cfg.TenorMonths <= 0 {
		return 0, false
	}
	principal := price * (1 - im.cfg.DownPaymentFraction)
	total := principal * (1 + im.cfg.AdditionalCostFraction + im.cfg.InterestFraction)
	monthly := total / float64(im.cfg.TenorMonths)
	return math.Round(monthly*100) / 100, true
}
