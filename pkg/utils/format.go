package utils

import (
	"fmt"
	"strings"
	"time"
)

// FormatCredits formats a credit amount with thousands separators.
func FormatCredits(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	n := len(intPart)
	if n > 3 {
		var groups []string
		for n > 3 {
			groups = append([]string{intPart[n-3:]}, groups...)
			intPart = intPart[:n-3]
			n = len(intPart)
		}
		groups = append([]string{intPart}, groups...)
		intPart = strings.Join(groups, ",")
	}

	result := intPart + "." + decPart + " Cr"
	if negative {
		result = "-" + result
	}
	return result
}

// FormatDuration renders a duration in a compact h/m/s form.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
