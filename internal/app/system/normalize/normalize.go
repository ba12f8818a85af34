// internal/app/system/normalize/normalize.go
//
// Package normalize provides input normalization helpers used by stores
// before validation and persistence. Keeping them in one place means every
// write path folds values the same way the unique indexes expect.
package normalize

import "strings"

// Email trims whitespace and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Phone trims whitespace and strips internal spaces so "07 123 456" and
// "07123456" compare equal.
func Phone(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

// Country trims whitespace and title-independent matching is handled by the
// query layer, so only the raw value is cleaned here.
func Country(s string) string {
	return strings.TrimSpace(s)
}

// Domain normalizes a broker domain for the sparse unique index: trimmed
// and lowercased, with a blank value mapped to nil so absent domains never
// collide with each other.
func Domain(s string) *string {
	d := strings.ToLower(strings.TrimSpace(s))
	if d == "" {
		return nil
	}
	return &d
}
