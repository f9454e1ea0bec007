package util

import (
	"strconv"
	"strings"
)

// ParseSizeRange returns the largest endpoint of a dash-separated headcount
// range such as "50-200". Empty input, or any segment that is not an integer,
// yields 0.
func ParseSizeRange(input string) int64 {
	if input == "" {
		return 0
	}

	var max int64
	for i, segment := range strings.Split(input, "-") {
		n, err := strconv.ParseInt(strings.TrimSpace(segment), 10, 64)
		if err != nil {
			return 0
		}
		if i == 0 || n > max {
			max = n
		}
	}
	return max
}
