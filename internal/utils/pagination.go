// Package utils holds small helpers shared by the HTTP handlers.
package utils

import "strconv"

// AtoiDefault parses s as a decimal int, returning def when s is empty or
// not a number. Used for optional skip/limit query parameters.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
