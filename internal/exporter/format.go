package exporter

import (
	"fmt"
	"strconv"
)

// formatFloat formats a float for CSV output with exactly 2 decimal places,
// so values like 13.4 appear as 13.40.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatFloat4 is for model outputs where two decimals lose signal.
func formatFloat4(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
