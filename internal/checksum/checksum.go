// Package checksum builds content fingerprints for archive folders.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
	"time"
)

// Fingerprint accumulates file entries into one digest. The zero value is
// not usable; call NewFingerprint.
type Fingerprint struct {
	h hash.Hash
	n int
}

// NewFingerprint returns an empty fingerprint.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{h: sha256.New()}
}

// Add records one file. Entries must be added in a stable order.
func (f *Fingerprint) Add(rel string, size int64, modTime time.Time) {
	buf := make([]byte, 0, len(rel)+32)
	buf = append(buf, rel...)
	buf = append(buf, 0)
	buf = strconv.AppendInt(buf, size, 10)
	buf = append(buf, 0)
	buf = strconv.AppendInt(buf, modTime.UnixNano(), 10)
	buf = append(buf, '\n')
	f.h.Write(buf)
	f.n++
}

// Len reports how many entries were added.
func (f *Fingerprint) Len() int { return f.n }

// Sum returns the hex digest of everything added so far.
func (f *Fingerprint) Sum() string {
	return hex.EncodeToString(f.h.Sum(nil))
}
