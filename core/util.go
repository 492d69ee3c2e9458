package core

import (
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStringPtr cleans the string behind `s` in place. nil is left alone.
func CleanStringPtr(s *string) {
	if s != nil {
		*s = CleanString(*s)
	}
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

// ParseOrdering reads a comma separated list of fields, each optionally prefixed with "-" for
// descending order. Fields outside of `allowed` are dropped.
func ParseOrdering(raw string, allowed ...string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" || !contains(allowed, field) {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
