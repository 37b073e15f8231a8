package models

import (
	"slices"
	"strings"
)

// MetadataExtension marks sidecar record files.
const MetadataExtension = ".json"

// MediaExtensions lists media extensions in match preference order: image
// formats first, then video formats.
var MediaExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic",
	".mp4", ".mov", ".webm", ".m4v",
}

// IsMediaExtension reports whether ext (with leading dot) is a known media
// extension, ignoring case.
func IsMediaExtension(ext string) bool {
	return slices.Contains(MediaExtensions, strings.ToLower(ext))
}
