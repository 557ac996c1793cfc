package utils

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numberPrinter = message.NewPrinter(language.English)

// FormatCurrency renders an amount as "UGX 1,234" with no decimals.
func FormatCurrency(amount int64) string {
	return "UGX " + numberPrinter.Sprintf("%d", amount)
}

// FormatPrice rounds a provider price and renders it like FormatCurrency.
func FormatPrice(price float64) string {
	return FormatCurrency(RoundAmount(price))
}

// RoundAmount converts a provider price to whole shillings.
func RoundAmount(price float64) int64 {
	return int64(math.Round(price))
}

// ParseAmount strips every non-digit and converts the rest, so "UGX 2,000" and
// "2,000/=" both parse as 2000. Input without digits yields 0.
func ParseAmount(input string) int64 {
	digits := DigitsOnly(input)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}
