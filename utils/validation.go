package utils

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._\s-]`)

// SanitizeFilename cleans an uploaded filename for safe use as an identifier.
// It trims spaces and dots, removes parent directory references, and filters
// out non-alphanumeric characters except for safe punctuation.
func SanitizeFilename(filename string) string {
	sanitized := strings.Trim(filename, " .")
	sanitized = strings.ReplaceAll(sanitized, "..", "")
	sanitized = unsafeChars.ReplaceAllString(sanitized, "")
	if len(sanitized) > 255 {
		sanitized = sanitized[:255]
	}
	return sanitized
}

// DocumentIDFromFilename derives a registry id from an uploaded filename:
// the sanitized base name without its extension, or a fresh UUID when
// nothing usable remains.
func DocumentIDFromFilename(filename string) string {
	base := SanitizeFilename(filepath.Base(filename))
	id := strings.TrimSuffix(base, filepath.Ext(base))
	id = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), " ", "_"))
	if id == "" {
		return uuid.NewString()
	}
	return id
}
