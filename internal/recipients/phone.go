package recipients

import (
	"fmt"
	"regexp"
)

var nonDigit = regexp.MustCompile(`\D`)

// NormalizePhone converts a free-form phone value into a canonical dialing
// string. Ten digits are assumed domestic and get the +1 country prefix;
// longer numbers are assumed to already carry their country code.
func NormalizePhone(raw string) (string, error) {
	digits := nonDigit.ReplaceAllString(raw, "")
	switch {
	case len(digits) < 10:
		return "", fmt.Errorf("invalid phone number format: %q", raw)
	case len(digits) == 10:
		return "+1" + digits, nil
	default:
		return "+" + digits, nil
	}
}
