// Package models defines the domain types for Lookback.
package models

import (
	"time"

	"github.com/starford/lookback/internal/dates"
)

// DefaultMediaType is used when a record carries no media type label.
const DefaultMediaType = "Unknown"

// FileKind classifies a scanned archive file.
type FileKind string

const (
	KindMetadata FileKind = "metadata"
	KindMedia    FileKind = "media"
)

// FileEntry is one file discovered under the archive root.
type FileEntry struct {
	Name string   `json:"name"`
	Path string   `json:"path"` // absolute
	Kind FileKind `json:"kind"`
}

// Stem returns the substring of the file name before the first '.'.
func (f FileEntry) Stem() string {
	for i := 0; i < len(f.Name); i++ {
		if f.Name[i] == '.' {
			return f.Name[:i]
		}
	}
	return f.Name
}

// MediaAsset references a media file matched to a metadata record.
type MediaAsset struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Handle is the displayable form of a loaded media asset. It only exists
// while the asset is loaded and is never persisted.
type Handle struct {
	MIME    string    `json:"mime"`
	Kind    string    `json:"kind"` // "image", "video" or "other"
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Memory is one archive entry: a metadata record plus its optional media.
//
// Media and Handle are normally set together. When a matched file fails to
// load, Media is kept and Handle stays nil so a later restore can retry the
// load; HasMedia is then true while Displayable is false.
type Memory struct {
	Filename     string        `json:"filename"`
	Date         string        `json:"date"`
	Instant      dates.Instant `json:"-"`
	MediaType    string        `json:"media_type"`
	Location     string        `json:"location,omitempty"`
	LocationName string        `json:"location_name,omitempty"`
	Media        *MediaAsset   `json:"media,omitempty"`
	Handle       *Handle       `json:"-"`
	Overlays     []MediaAsset  `json:"overlays,omitempty"`
}

// HasMedia reports whether a media asset was matched, loaded or not.
func (m *Memory) HasMedia() bool {
	return m.Media != nil
}

// Displayable reports whether the matched media is currently loaded.
func (m *Memory) Displayable() bool {
	return m.Media != nil && m.Handle != nil
}

// PersistedRecord is the reduced shape a catalog is saved in.
type PersistedRecord struct {
	Filename     string   `json:"filename"`
	Date         string   `json:"date"`
	MediaType    string   `json:"mediaType"`
	Location     string   `json:"location,omitempty"`
	LocationName string   `json:"locationName,omitempty"`
	MediaName    string   `json:"mediaName,omitempty"`
	MediaPath    *string  `json:"mediaPath"`
	Overlays     []string `json:"overlays,omitempty"`
}
