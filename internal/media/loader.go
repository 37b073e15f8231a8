// Package media turns archive media files into displayable handles.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/starford/lookback/internal/models"
)

// ErrTooSmall is returned for files below the configured minimum size.
var ErrTooSmall = errors.New("media: file too small")

const sniffLen = 512

var magic = []struct {
	prefix []byte
	mime   string
}{
	{[]byte("\xff\xd8\xff"), "image/jpeg"},
	{[]byte("\x89PNG"), "image/png"},
	{[]byte("GIF8"), "image/gif"},
	{[]byte("\x00\x00\x00\x18ftyp"), "video/mp4"},
	{[]byte("\x00\x00\x00\x1cftyp"), "video/mp4"},
	{[]byte("\x00\x00\x00\x20ftyp"), "video/mp4"},
	{[]byte("\x00\x00\x00\x24ftyp"), "video/mp4"},
	{[]byte("\x00\x00\x00\x28ftyp"), "video/mp4"},
}

// Loader loads media files from the local file system.
type Loader struct {
	minBytes int64
}

// NewLoader creates a Loader that rejects files smaller than minBytes.
func NewLoader(minBytes int64) *Loader {
	return &Loader{minBytes: minBytes}
}

// Load stats and sniffs the file at path.
func (l *Loader) Load(ctx context.Context, path string) (*models.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("media: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("media: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("media: %s is a directory", path)
	}
	if info.Size() < l.minBytes {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooSmall, path, info.Size())
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("media: read %s: %w", path, err)
	}
	mime := Sniff(head[:n])
	return &models.Handle{
		MIME:    mime,
		Kind:    KindOf(mime),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Sniff detects a MIME type from leading bytes.
func Sniff(head []byte) string {
	for _, m := range magic {
		if bytes.HasPrefix(head, m.prefix) {
			return m.mime
		}
	}
	return http.DetectContentType(head)
}

// KindOf reduces a MIME type to "image", "video" or "other".
func KindOf(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	}
	return "other"
}
