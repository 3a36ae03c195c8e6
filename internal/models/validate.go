package models

import (
	"regexp"
	"strings"

	"todo-sync/internal/apperrors"
)

const (
	MaxTitleLength = 500
	MaxNameLength  = 50
)

var (
	markupPattern = regexp.MustCompile(`<[^>]*>`)
	colorPattern  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// SanitizeText strips markup tags and trims surrounding whitespace.
func SanitizeText(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(s, ""))
}

// ValidateTitle sanitizes a task title and enforces the 1-500 character
// bound. The returned string is the value to persist.
func ValidateTitle(raw string) (string, error) {
	title := SanitizeText(raw)
	if title == "" {
		return "", apperrors.Validationf("title is required")
	}
	if len([]rune(title)) > MaxTitleLength {
		return "", apperrors.Validationf("title must be %d characters or less", MaxTitleLength)
	}
	return title, nil
}

// ValidateCategoryName sanitizes a category name and enforces the 1-50
// character bound. Uniqueness is checked by the repositories, scoped to
// whichever backend is authoritative.
func ValidateCategoryName(raw string) (string, error) {
	name := SanitizeText(raw)
	if name == "" {
		return "", apperrors.Validationf("category name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", apperrors.Validationf("category name must be %d characters or less", MaxNameLength)
	}
	return name, nil
}

// ValidateColor accepts #RGB and #RRGGBB hex strings.
func ValidateColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if !colorPattern.MatchString(color) {
		return "", apperrors.Validationf("color must be a 3- or 6-digit hex value like #3b82f6")
	}
	return color, nil
}

// EqualNames compares category names the way the uniqueness check does:
// trimmed and case-insensitively.
func EqualNames(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
