package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// ukPostcode matches the UK postcode format, case-insensitively and with an
// optional single space before the inward code (e.g. "SW1A 1AA", "sw1a1aa").
var ukPostcode = regexp.MustCompile(`(?i)^[A-Z]{1,2}\d[A-Z\d]? ?\d[A-Z]{2}$`)

// ShippingAddress is the checkout delivery form. The wire field for County is
// "state", matching the API's order schema.
type ShippingAddress struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	City     string `json:"city"`
	County   string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

func ValidPostcode(postcode string) bool {
	return ukPostcode.MatchString(strings.TrimSpace(postcode))
}

// FormatPostcode normalizes a UK postcode to its canonical form: uppercase
// with a single space before the final three characters ("sw1a1aa" becomes "SW1A 1AA").
// The input is returned unchanged if it does not look like a postcode.
func FormatPostcode(postcode string) string {
	clean := strings.ToUpper(strings.ReplaceAll(postcode, " ", ""))
	if !ukPostcode.MatchString(clean) {
		return postcode
	}
	return clean[:len(clean)-3] + " " + clean[len(clean)-3:]
}

// Validate reports whether the address may gate a payment attempt: every
// field present and the postcode in UK format. It returns the first problem
// found as a user-facing message.
func (a ShippingAddress) Validate() error {
	fields := []struct {
		label string
		value string
	}{
		{"name", a.Name},
		{"email", a.Email},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"county", a.County},
		{"postcode", a.Postcode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("missing %s", f.label)
		}
	}
	if !ValidPostcode(a.Postcode) {
		return fmt.Errorf("invalid UK postcode %q (expected format like SW1A 1AA)", a.Postcode)
	}
	return nil
}
