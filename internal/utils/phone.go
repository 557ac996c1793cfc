package utils

import (
	"regexp"
	"strings"
)

var (
	nonDigits      = regexp.MustCompile(`[^0-9]`)
	ugandaMobileRe = regexp.MustCompile(`^2567[0-9]{8}$`)
)

// DigitsOnly strips everything that is not 0-9.
func DigitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// FormatPhoneNumber normalises Uganda mobile numbers to 2567XXXXXXXX.
// Local forms 07XXXXXXXX and 7XXXXXXXX get the country code; anything else is
// returned as bare digits.
func FormatPhoneNumber(phone string) string {
	digits := DigitsOnly(phone)

	switch {
	case len(digits) == 9 && strings.HasPrefix(digits, "7"):
		return "256" + digits
	case len(digits) == 10 && strings.HasPrefix(digits, "07"):
		return "256" + digits[1:]
	}
	return digits
}

// IsValidUgandaNumber reports whether phone normalises to a Uganda mobile number.
func IsValidUgandaNumber(phone string) bool {
	return ugandaMobileRe.MatchString(FormatPhoneNumber(phone))
}

// CanonicalSender turns a transport identity such as "whatsapp:+256772123456"
// into country-code-prefixed digits.
func CanonicalSender(from string) string {
	return DigitsOnly(strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:"))
}
