// Package parser decodes the JSON sidecar records that accompany exported
// media files.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/starford/lookback/internal/models"
)

// ErrNotRecord is returned for JSON documents that are not sidecar records,
// such as the bulk memories_history.json export.
var ErrNotRecord = errors.New("parser: not a metadata record")

// Record holds the fields extracted from one sidecar file.
type Record struct {
	Date         string
	MediaType    string
	Location     string
	LocationName string
}

type rawRecord struct {
	Date         *string `json:"Date"`
	MediaType    *string `json:"Media Type"`
	Location     *string `json:"Location"`
	LocationName *string `json:"Location Name"`
}

// ParseRecord decodes a sidecar. The "Date" key must be present; its value
// may be empty or null, both of which yield an empty Date. A missing media
// type becomes models.DefaultMediaType.
func ParseRecord(data []byte) (*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotRecord
	}

	// Key presence decides record-ness: a null Date still has the key.
	var keys map[string]any
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return nil, fmt.Errorf("parser: decode record: %w", err)
	}
	if _, ok := keys["Date"]; !ok {
		return nil, ErrNotRecord
	}

	var raw rawRecord
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("parser: decode record: %w", err)
	}

	rec := &Record{
		Date:         deref(raw.Date),
		MediaType:    deref(raw.MediaType),
		Location:     strings.TrimSpace(deref(raw.Location)),
		LocationName: deref(raw.LocationName),
	}
	if strings.TrimSpace(rec.MediaType) == "" {
		rec.MediaType = models.DefaultMediaType
	}
	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
