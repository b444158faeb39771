package domain

import "strconv"

// CursorLess reports whether cursor a is strictly before b in the
// provider's change log. History cursors are decimal numbers; if either
// side does not parse, fall back to a length-aware lexicographic
// comparison so the ordering stays total.
func CursorLess(a, b string) bool {
	if a == "" {
		return b != ""
	}
	if b == "" {
		return false
	}

	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}

	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
