package utils

import (
	"path/filepath"
	"strings"
)

// FileExtension returns the lowercased extension without the dot.
func FileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 1 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// SanitizeString removes dangerous characters from string
func SanitizeString(input string) string {
	// Remove null bytes and control characters
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}

// SanitizeFilename strips path separators and parent references from an
// uploaded file name. The extension is kept as sent.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)
	base = strings.TrimSpace(strings.ReplaceAll(base, "..", "_"))
	if base == "" || base == "." {
		base = "upload"
	}
	return base + ext
}
