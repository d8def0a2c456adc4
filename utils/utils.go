// Package utils provides utility functions for the application.
package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// ValueOr dereferences p, falling back to def when p is nil
func ValueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// NormalizeName trims surrounding whitespace from a display name
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
