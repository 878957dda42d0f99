package utils

import (
	"fmt"
	"math"
	"strings"
)

// RoundMoney rounds an amount to whole cents, half away from zero.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// FormatCurrency renders an amount with a thousands separator and two
// decimals, e.g. 1234.5 -> "1,234.50".
func FormatCurrency(amount float64) string {
	formatted := fmt.Sprintf("%.2f", RoundMoney(math.Abs(amount)))

	parts := strings.Split(formatted, ".")
	integerPart := parts[0]
	decimalPart := parts[1]

	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	sign := ""
	if amount < 0 && RoundMoney(amount) != 0 {
		sign = "-"
	}
	return sign + strings.Join(groups, ",") + "." + decimalPart
}
