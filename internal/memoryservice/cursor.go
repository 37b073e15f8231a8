package memoryservice

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/models"
)

// View references accepted by OpenCursor.
const (
	ViewFeed        = "feed"
	ViewFlashbacks  = "flashbacks"
	viewYearPrefix  = "year:"
	viewPlacePrefix = "place:"
	viewUnknownDate = "year:unknown"
)

// CursorState describes the open cursor.
type CursorState struct {
	Open        bool           `json:"open"`
	View        string         `json:"view,omitempty"`
	Index       int            `json:"index"`
	Len         int            `json:"len"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
	Memory      *models.Memory `json:"memory,omitempty"`
}

// OpenCursor opens a detail cursor over view, positioned on filename or,
// when filename is empty, on index. View references are "feed",
// "flashbacks" (the last drawn sample), "year:<YYYY>:<MM>", "year:unknown"
// and "place:<key>".
func (s *Service) OpenCursor(view, filename string, index int) (*CursorState, error) {
	list, err := s.resolveView(view)
	if err != nil {
		return nil, err
	}
	if filename != "" {
		m, err := s.catalog.Get(filename)
		if err != nil {
			return nil, err
		}
		err = s.cursor.Open(list, m)
		if err != nil {
			return nil, err
		}
	} else if err := s.cursor.OpenAt(list, index); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cursorView = view
	s.mu.Unlock()
	return s.CursorState(), nil
}

// CursorState returns the current cursor state; Open is false when closed.
func (s *Service) CursorState() *CursorState {
	m, err := s.cursor.Current()
	if err != nil {
		return &CursorState{Index: -1}
	}
	s.mu.Lock()
	view := s.cursorView
	s.mu.Unlock()
	return &CursorState{
		Open:        true,
		View:        view,
		Index:       s.cursor.Index(),
		Len:         s.cursor.Len(),
		HasNext:     s.cursor.HasNext(),
		HasPrevious: s.cursor.HasPrevious(),
		Memory:      m,
	}
}

// CursorNext advances the cursor; at the last item it stays put.
func (s *Service) CursorNext() (*CursorState, error) {
	if _, err := s.cursor.Next(); err != nil {
		return nil, err
	}
	return s.CursorState(), nil
}

// CursorPrevious moves the cursor back; at the first item it stays put.
func (s *Service) CursorPrevious() (*CursorState, error) {
	if _, err := s.cursor.Previous(); err != nil {
		return nil, err
	}
	return s.CursorState(), nil
}

// CloseCursor closes the detail cursor.
func (s *Service) CloseCursor() {
	s.cursor.Close()
	s.mu.Lock()
	s.cursorView = ""
	s.mu.Unlock()
}

func (s *Service) resolveView(view string) ([]*models.Memory, error) {
	var list []*models.Memory
	switch {
	case view == ViewFeed:
		list = s.proj.Feed(0)
	case view == ViewFlashbacks:
		s.mu.Lock()
		list = s.flashbacks
		s.mu.Unlock()
		if list == nil {
			list = s.Flashbacks()
		}
	case view == viewUnknownDate:
		for _, g := range s.proj.TimeGroups() {
			if !g.Known {
				list = g.Months[0].Memories
			}
		}
	case strings.HasPrefix(view, viewYearPrefix):
		year, month, err := parseYearView(view)
		if err != nil {
			return nil, err
		}
		list = s.proj.Month(year, month)
	case strings.HasPrefix(view, viewPlacePrefix):
		list = s.proj.Place(strings.TrimPrefix(view, viewPlacePrefix))
	default:
		return nil, fmt.Errorf("memoryservice: view %q: %w", view, apperr.ErrInvalidView)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("memoryservice: view %q is empty: %w", view, apperr.ErrNotFound)
	}
	return list, nil
}

func parseYearView(view string) (int, time.Month, error) {
	parts := strings.Split(strings.TrimPrefix(view, viewYearPrefix), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("memoryservice: view %q: %w", view, apperr.ErrInvalidView)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("memoryservice: view %q: %w", view, apperr.ErrInvalidView)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("memoryservice: view %q: %w", view, apperr.ErrInvalidView)
	}
	return year, time.Month(month), nil
}
