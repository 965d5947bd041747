package calls

import "strings"

// NormalizePhone converts a North American number to E.164.
//
//	"2125551234"     -> "+12125551234"
//	"12125551234"    -> "+12125551234"
//	"(212) 555-1234" -> "+12125551234"
//	"+12125551234"   -> "+12125551234"
//
// Everything except digits and '+' is stripped first. Inputs that match none of
// the shapes above are returned stripped but otherwise unchanged; use IsE164 to
// detect them.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "+") {
		return digits
	}
	switch {
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	default:
		return digits
	}
}

// IsE164 reports whether s looks like a dialable E.164 number.
func IsE164(s string) bool {
	if len(s) < 8 || len(s) > 16 || s[0] != '+' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s[1] != '0'
}
