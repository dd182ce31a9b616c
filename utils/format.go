// utils/format.go
package utils

import "fmt"

// FormatSeconds renders a duration in whole seconds as a human "Xh Ym" string
// for the mobile client. Sub-minute totals round down to "0m".
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
