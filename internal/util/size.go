// Package util provides small helpers shared by the dataset packages.
package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(B|KB|MB|GB)$`)

var multipliers = map[string]int64{
	"B":  1,
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
}

// ParseSize parses a size string (e.g., "50MB", "1.5GB") into bytes.
//
// Supported units: B, KB, MB, GB. The empty string and "0" mean no limit and parse to 0.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))
	if sizeStr == "" || sizeStr == "0" {
		return 0, nil
	}

	matches := sizePattern.FindStringSubmatch(sizeStr)
	if matches == nil {
		return 0, fmt.Errorf("invalid format: '%s'. Use format like '100MB', '4.5GB'", sizeStr)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %v", err)
	}

	return int64(value * float64(multipliers[matches[2]])), nil
}

// FormatSize renders a byte count with one decimal in the largest fitting unit, e.g. "1.5 MB".
func FormatSize(n int64) string {
	switch {
	case n < 0:
		return "0 B"
	case n < multipliers["KB"]:
		return fmt.Sprintf("%d B", n)
	case n < multipliers["MB"]:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(multipliers["KB"]))
	case n < multipliers["GB"]:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(multipliers["MB"]))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/float64(multipliers["GB"]))
	}
}
