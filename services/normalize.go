package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// yearMileageRegexp matches "2018 - 70.000-75.000 km" (site also renders "2018 • 70.000-75.000 km").
	yearMileageRegexp = regexp.MustCompile(`(?i)^(\d{4})\s*[-•·]\s*(\d{1,3}(?:\.\d{3})*)\s*-\s*(\d{1,3}(?:\.\d{3})*)\s*km$`)
	// shorthandRegexp captures "8,9jt", "8.9 juta", "750rb", "1.250rb".
	shorthandRegexp = regexp.MustCompile(`(?i)(\d+)(?:([.,])(\d+))?\s*(jt|juta|rb|ribu)\b`)
	// fullAmountRegexp captures a written-out amount with thousands separators.
	fullAmountRegexp = regexp.MustCompile(`^(?i)(?:rp\.?\s*)?(\d{1,3}(?:\.\d{3})+)(?:\s*/\s*\p{L}+)?$`)

	todayRegexp     = regexp.MustCompile(`(?i)^(hari ini|today)$`)
	yesterdayRegexp = regexp.MustCompile(`(?i)^(kemarin|yesterday)$`)
	daysAgoRegexp   = regexp.MustCompile(`(?i)^(\d{1,3})\s+(hari yang lalu|days? ago)$`)
	shortDateRegexp = regexp.MustCompile(`^(\d{1,2}) (\p{L}{3})$`)
)

var monthAbbrev = [...]string{
	"Jan", "Feb", "Mar", "Apr", "Mei", "Jun",
	"Jul", "Agu", "Sep", "Okt", "Nov", "Des",
}

// ParsePrice keeps only the digits of s, so "Rp 450.000.000" becomes
// 450000000. Text without digits is missing, not zero.
func ParsePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// YearMileage is the parsed form of the listing subtitle.
type YearMileage struct {
	Year    int
	LowerKM float64
	UpperKM float64
}

// ParseYearMileage parses "<year> - <lower>-<upper> km". Anything else,
// including a lower bound above the upper bound, fails as a whole.
func ParseYearMileage(s string) (YearMileage, bool) {
	m := yearMileageRegexp.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return YearMileage{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return YearMileage{}, false
	}
	lower, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ".", ""), 64)
	if err != nil {
		return YearMileage{}, false
	}
	upper, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ".", ""), 64)
	if err != nil {
		return YearMileage{}, false
	}
	if lower > upper {
		return YearMileage{}, false
	}
	return YearMileage{Year: year, LowerKM: lower, UpperKM: upper}, true
}

// ParseInstallment converts installment text into a monthly amount in rupiah.
// "8,9jt-an/bln" is 8 900 000, "750rb/bln" is 750 000 and a written-out
// "Rp 8.900.000/bln" is taken literally. A dot followed by exactly three
// digits groups thousands, so "1.250rb" is 1 250 000.
func ParseInstallment(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if m := shorthandRegexp.FindStringSubmatch(s); m != nil {
		scale := int64(1_000_000)
		if u := strings.ToLower(m[4]); u == "rb" || u == "ribu" {
			scale = 1_000
		}
		whole, frac := m[1], m[3]
		if m[2] == "." && len(frac) == 3 {
			whole, frac = whole+frac, ""
		}
		return scaleDecimal(whole, frac, scale)
	}
	if m := fullAmountRegexp.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ".", ""), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// scaleDecimal computes whole.frac * scale without going through a binary
// fraction, so 8,9 jt is exactly 8900000.
func scaleDecimal(whole, frac string, scale int64) (float64, bool) {
	digits := whole + frac
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	div := int64(1)
	for range frac {
		div *= 10
	}
	if div > scale {
		return float64(n) * float64(scale) / float64(div), true
	}
	if n > math.MaxInt64/(scale/div) {
		return 0, false
	}
	return float64(n * (scale / div)), true
}

// PostedTimeNormalizer turns the site's posted-time text into a short
// "<day> <Mon>" token.
type PostedTimeNormalizer struct {
	// MaxLen is the longest non-relative text accepted as a date token.
	MaxLen int
	Now    func() time.Time
}

// Normalize returns the date token, or false when the text is malformed.
func (n PostedTimeNormalizer) Normalize(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", false
	}

	today := n.Now()
	switch {
	case todayRegexp.MatchString(s):
		return shortDate(today), true
	case yesterdayRegexp.MatchString(s):
		return shortDate(today.AddDate(0, 0, -1)), true
	}
	if m := daysAgoRegexp.FindStringSubmatch(s); m != nil {
		days, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		return shortDate(today.AddDate(0, 0, -days)), true
	}

	if len([]rune(s)) > n.MaxLen {
		return "", false
	}
	m := shortDateRegexp.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	return s, true
}

func shortDate(t time.Time) string {
	return strconv.Itoa(t.Day()) + " " + monthAbbrev[t.Month()-1]
}
