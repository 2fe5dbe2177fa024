package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// currencySymbol returns the display prefix for an ISO currency code.
func currencySymbol(currency string) string {
	switch strings.ToUpper(currency) {
	case "INR":
		return "₹"
	case "USD", "":
		return "$"
	case "EUR":
		return "€"
	case "GBP", "GBX":
		return "£"
	case "JPY":
		return "¥"
	default:
		return strings.ToUpper(currency) + " "
	}
}

// FormatPrice formats a price with two decimals and the currency's digit
// grouping. INR uses the Indian system (1,00,000).
func FormatPrice(price float64, currency string) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "-"
	}
	fixed := decimal.NewFromFloat(math.Abs(price)).StringFixed(2)
	intPart, decPart, _ := strings.Cut(fixed, ".")

	var grouped string
	if strings.EqualFold(currency, "INR") {
		grouped = formatIndianNumber(intPart)
	} else if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		grouped = humanize.Comma(n)
	} else {
		grouped = intPart
	}

	result := currencySymbol(currency) + grouped + "." + decPart
	if price < 0 && fixed != "0.00" {
		result = "-" + result
	}
	return result
}

// formatIndianNumber formats an integer string in Indian numbering system.
// Indian system: 1,00,00,000 (1 crore) vs Western: 10,000,000
func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 2 {
		result = s[len(s)-2:] + "," + result
		s = s[:len(s)-2]
	}
	return s + "," + result
}

// FormatVolume formats volume in compact form: lakh and crore for INR,
// SI suffixes otherwise.
func FormatVolume(volume int64, currency string) string {
	if strings.EqualFold(currency, "INR") {
		switch {
		case volume >= 10000000:
			return fmt.Sprintf("%.2f Cr", float64(volume)/10000000)
		case volume >= 100000:
			return fmt.Sprintf("%.2f L", float64(volume)/100000)
		}
		return formatIndianNumber(strconv.FormatInt(volume, 10))
	}
	if volume < 10000 {
		return humanize.Comma(volume)
	}
	return humanize.SIWithDigits(float64(volume), 2, "")
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatAge describes how long ago t was, relative to now.
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatConfidence formats a confidence score as a ten-step bar.
func FormatConfidence(conf int) string {
	conf = max(0, min(100, conf))
	filled := (conf + 5) / 10
	return fmt.Sprintf("%3d%% %s%s", conf, strings.Repeat("█", filled), strings.Repeat("░", 10-filled))
}

// TruncateString truncates a string to max runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
