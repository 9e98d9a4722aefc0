// Package utils holds small parsing helpers shared by the HTTP layer.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page parses 0-based page and size query values. Negative pages become 0.
// A size that is missing, negative or above maxSize becomes 0, which the
// backend client replaces with the endpoint's default page size.
func Page(pageStr, sizeStr string, maxSize int) (page, size int) {
	page = AtoiDefault(pageStr, 0)
	if page < 0 {
		page = 0
	}
	size = AtoiDefault(sizeStr, 0)
	if size < 0 || (maxSize > 0 && size > maxSize) {
		size = 0
	}
	return page, size
}
