package utils

import "fmt"

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with two decimals in 1024-based units, e.g. "2.00 MB"
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}

	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}

	return fmt.Sprintf("%.2f %s", size, sizeUnits[unit])
}
