package utils

import "fmt"

// HumanSize formats a byte count with a binary unit suffix, e.g. "1.5 MB".
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	idx := -1
	for value >= unit && idx < len("KMGTPE")-1 {
		value /= unit
		idx++
	}
	return fmt.Sprintf("%.1f %cB", value, "KMGTPE"[idx])
}
