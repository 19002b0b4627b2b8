package game

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rupeePrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatCurrency renders a rupee amount with Indian digit grouping, no paise.
func FormatCurrency(v float64) string {
	r := math.Round(v)
	if r < 0 {
		return "-₹" + rupeePrinter.Sprintf("%d", int64(-r))
	}
	return "₹" + rupeePrinter.Sprintf("%d", int64(r))
}
