package security

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "price-analyst/internal/errors"
)

// fastSealer keeps key derivation cheap in tests.
func fastSealer(t *testing.T, passphrase string) *Sealer {
	t.Helper()
	s, err := NewSealer(passphrase)
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	s.iterations = 1000
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := fastSealer(t, "correct horse")

	sealed, err := s.Seal("pk_live_1234567890")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !IsSealed(sealed) || strings.Contains(sealed, "pk_live") {
		t.Fatalf("sealed value = %q", sealed)
	}

	again, _ := s.Seal("pk_live_1234567890")
	if again == sealed {
		t.Error("two seals of the same value should differ")
	}

	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if plain != "pk_live_1234567890" {
		t.Errorf("Open() = %q", plain)
	}
}

func TestSealer_WrongKeyAndTamper(t *testing.T) {
	sealed, err := fastSealer(t, "right").Seal("secret")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	_, err = fastSealer(t, "wrong").Open(sealed)
	if !errors.Is(err, apperrors.ErrCredentialAccess) {
		t.Errorf("wrong key error = %v, want ErrCredentialAccess", err)
	}

	tampered := sealed[:len(sealed)-4] + "AAAA"
	if _, err := fastSealer(t, "right").Open(tampered); err == nil {
		t.Error("tampered value opened")
	}
	if _, err := fastSealer(t, "right").Open("plain-value"); err == nil {
		t.Error("unsealed value opened")
	}
	if _, err := NewSealer(""); err == nil {
		t.Error("empty master key accepted")
	}
}

func TestProperty_SealOpenRoundTrip(t *testing.T) {
	s := fastSealer(t, "property")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("Open(Seal(x)) == x", prop.ForAll(
		func(v string) bool {
			sealed, err := s.Seal(v)
			if err != nil {
				return false
			}
			plain, err := s.Open(sealed)
			return err == nil && plain == v
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		secret  string
		keepsIn string
	}{
		{"query apikey", `Get "https://api.twelvedata.com/time_series?symbol=AAPL&apikey=abcd1234efgh5678": dial tcp`, "abcd1234efgh5678", "symbol=AAPL"},
		{"polygon apiKey", `https://api.polygon.io/v2/aggs?apiKey=PK_9876543210XYZ&limit=5`, "PK_9876543210XYZ", "limit=5"},
		{"auth header", `Authorization: token kitekey:accesstoken123`, "kitekey:accesstoken123", "Authorization"},
		{"openai key", `invalid key sk-abcdefghijklmnopqrstuvwx`, "sk-abcdefghijklmnopqrstuvwx", "invalid key"},
		{"telegram bot url", `Post "https://api.telegram.org/bot123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw/sendMessage": EOF`, "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw", "/sendMessage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.in)
			if strings.Contains(got, tt.secret) {
				t.Errorf("Redact() = %q still contains the secret", got)
			}
			if !strings.Contains(got, tt.keepsIn) {
				t.Errorf("Redact() = %q lost %q", got, tt.keepsIn)
			}
		})
	}
}

func TestRedactError(t *testing.T) {
	base := fmt.Errorf("get ?apikey=supersecretvalue: %w", apperrors.ErrUpstream)
	err := RedactError(base)
	if strings.Contains(err.Error(), "supersecretvalue") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, apperrors.ErrUpstream) {
		t.Error("redaction broke the error chain")
	}
	if RedactError(nil) != nil {
		t.Error("RedactError(nil) != nil")
	}
}

func TestMaskCredential(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"abc":              "***",
		"abcdefg":          "ab*****",
		"abcd1234efgh5678": "abcd********5678",
	}
	for in, want := range tests {
		if got := MaskCredential(in); got != want {
			t.Errorf("MaskCredential(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"aapl", "NSE:INFY", "RELIANCE.NS", "^GSPC", "BRK-B", "EURUSD=X", "M&M"}
	for _, s := range valid {
		if _, err := ValidateSymbol(s); err != nil {
			t.Errorf("ValidateSymbol(%q) error = %v", s, err)
		}
	}

	invalid := []string{"", "   ", "AAPL; rm -rf", "a b", "<script>", strings.Repeat("A", 30)}
	for _, s := range invalid {
		if _, err := ValidateSymbol(s); err == nil {
			t.Errorf("ValidateSymbol(%q) accepted", s)
		}
	}

	got, err := ValidateSymbols([]string{"aapl", "AAPL", "msft"})
	if err != nil || len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("ValidateSymbols() = %v, %v", got, err)
	}
}

func TestValidateCredential(t *testing.T) {
	if err := ValidateCredential("polygon", "  "); err == nil {
		t.Error("empty credential accepted")
	}
	if err := ValidateCredential("polygon", "ab cd"); err == nil {
		t.Error("credential with whitespace accepted")
	}
	if err := ValidateCredential("polygon", "pk_123"); err != nil {
		t.Errorf("valid credential rejected: %v", err)
	}
}
