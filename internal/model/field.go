package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel is written in place of an absent attribute. It is distinct from
// an empty string.
const Sentinel = "N/A"

// ParseRating coerces captured rating text to a value in [0,5]. Anything
// non-numeric, out of range or the sentinel yields nil, never zero.
func ParseRating(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == Sentinel {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 5 {
		return nil
	}
	return &v
}

var integerRe = regexp.MustCompile(`\d[\d,]*`)

// ParseEmployeeCount returns the largest integer in an employee-count
// string: "1,001 to 5,000 Employees" gives 5000 and "10000+ Employees"
// gives 10000. Text with no digits reports false.
func ParseEmployeeCount(s string) (int, bool) {
	if strings.TrimSpace(s) == Sentinel {
		return 0, false
	}
	best, found := 0, false
	for _, m := range integerRe.FindAllString(s, -1) {
		n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
		if err != nil {
			continue
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	return best, found
}

// OptionalString returns nil for blank or sentinel text.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == Sentinel {
		return nil
	}
	return &s
}
