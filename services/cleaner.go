package services

import (
	"net/url"
	"strings"
	"time"
	"unicode"

	"olx-scraper/config"
	"olx-scraper/models"
	"olx-scraper/utils"
)

// Cleaner assembles one normalized Listing per RawListing. It never drops a
// record: fields that fail to parse become missing values.
type Cleaner struct {
	logger     *utils.Logger
	baseURL    *url.URL
	baseRaw    string
	delimiters []string
	postedTime PostedTimeNormalizer
	imputer    *Imputer
}

// NewCleaner creates a Cleaner from the site base URL, location delimiters,
// posted-time cutoff and imputation constants of cfg.
func NewCleaner(cfg *config.Config, logger *utils.Logger) *Cleaner {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		logger.Warn("[cleaner] Base URL %q is not absolute, relative links will be joined as text", cfg.BaseURL)
		base = nil
	}
	return &Cleaner{
		logger:     logger,
		baseURL:    base,
		baseRaw:    strings.TrimRight(cfg.BaseURL, "/"),
		delimiters: cfg.LocationDelimiters,
		postedTime: PostedTimeNormalizer{MaxLen: cfg.PostedTimeMaxLen, Now: time.Now},
		imputer:    NewImputer(cfg.Imputation),
	}
}

// WithClock replaces the clock used to resolve relative posted times.
func (c *Cleaner) WithClock(now func() time.Time) *Cleaner {
	c.postedTime.Now = now
	return c
}

// Clean normalizes raw listings, preserving their order.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	result := make([]*models.Listing, 0, len(raw))
	imputed := 0

	for _, r := range raw {
		l := c.CleanOne(r)
		if l.InstallmentImputed {
			imputed++
		}
		result = append(result, l)
	}

	if imputed > 0 {
		c.logger.Info("[cleaner] Imputed installment for %d of %d listings based on price", imputed, len(result))
	} else {
		c.logger.Info("[cleaner] No missing installment; nothing to impute")
	}
	c.logger.Info("[cleaner] Normalized %d listings", len(result))
	return result
}

// CleanOne normalizes a single listing.
func (c *Cleaner) CleanOne(r *models.RawListing) *models.Listing {
	l := &models.Listing{
		Title:      normaliseText(r.Title.String),
		ListingURL: c.absoluteURL(r.ListingURL),
		Location:   c.location(r.Location),
	}

	if r.RawPrice.Valid {
		if p, ok := ParsePrice(r.RawPrice.String); ok {
			l.Price = &p
		} else {
			c.logger.Debug("[cleaner] price: no digits in %q", r.RawPrice.String)
		}
	}

	if r.YearMileage.Valid {
		if ym, ok := ParseYearMileage(r.YearMileage.String); ok {
			l.Year, l.LowerKM, l.UpperKM = &ym.Year, &ym.LowerKM, &ym.UpperKM
		} else {
			c.logger.Debug("[cleaner] year_mileage: %q does not match \"<year> - <lower>-<upper> km\"", r.YearMileage.String)
		}
	}

	if r.RawPostedTime.Valid {
		if pt, ok := c.postedTime.Normalize(r.RawPostedTime.String); ok {
			l.PostedTime = &pt
		} else {
			c.logger.Debug("[cleaner] posted_time: malformed value %q", r.RawPostedTime.String)
		}
	}

	if r.RawInstallment.Valid {
		if inst, ok := ParseInstallment(r.RawInstallment.String); ok {
			l.Installment = &inst
		} else {
			c.logger.Debug("[cleaner] installment: cannot parse %q, deferring to imputation", r.RawInstallment.String)
		}
	}

	if l.Installment == nil && l.Price != nil {
		if est, ok := c.imputer.Estimate(*l.Price); ok {
			l.Installment = &est
			l.InstallmentImputed = true
		} else {
			c.logger.Debug("[cleaner] imputation: no usable price (%v)", *l.Price)
		}
	}

	return l
}

// absoluteURL resolves a relative listing link against the site base URL.
func (c *Cleaner) absoluteURL(t models.Text) string {
	s := strings.TrimSpace(t.String)
	if !t.Valid || s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err == nil && u.IsAbs() && u.Host != "" {
		return s
	}
	if err == nil && c.baseURL != nil {
		return c.baseURL.ResolveReference(u).String()
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return c.baseRaw + s
}

// location keeps the segment before the leftmost configured delimiter.
func (c *Cleaner) location(t models.Text) *string {
	if !t.Valid {
		return nil
	}
	s := strings.TrimSpace(t.String)
	cut := len(s)
	for _, d := range c.delimiters {
		if i := strings.Index(s, d); i >= 0 && i < cut {
			cut = i
		}
	}
	s = strings.TrimSpace(s[:cut])
	if s == "" {
		return nil
	}
	return &s
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
