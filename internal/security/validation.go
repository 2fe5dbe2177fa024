package security

import (
	"regexp"
	"strings"

	apperrors "price-analyst/internal/errors"
)

// symbolPattern accepts plain tickers plus the exchange forms providers use:
// "NSE:INFY", "RELIANCE.NS", "^GSPC", "BRK-B", "EURUSD=X".
var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9&.\-=:^]{0,24}$`)

// ValidateSymbol normalizes and checks a ticker symbol.
func ValidateSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", apperrors.NewValidationError("symbol", symbol, "symbol is required")
	}
	if !symbolPattern.MatchString(s) {
		return "", apperrors.NewValidationError("symbol", symbol, "invalid symbol format")
	}
	return s, nil
}

// ValidateSymbols validates a list, stopping at the first bad symbol.
func ValidateSymbols(symbols []string) ([]string, error) {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		s, err := ValidateSymbol(sym)
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// ValidateCredential rejects values that cannot be API keys.
func ValidateCredential(provider, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return apperrors.NewValidationError(provider, "", "credential is empty")
	}
	if strings.ContainsAny(v, " \t\r\n") {
		return apperrors.NewValidationError(provider, MaskCredential(v), "credential contains whitespace")
	}
	return nil
}
