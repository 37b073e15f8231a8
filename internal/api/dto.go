package api

import (
	"net/url"
	"strconv"

	"github.com/starford/lookback/internal/memoryservice"
	"github.com/starford/lookback/internal/models"
	"github.com/starford/lookback/internal/projector"
)

// IngestRequest is the request body for ingesting a folder.
type IngestRequest struct {
	Path string `json:"path" example:"/home/me/snapchat/memories" validate:"required"`
}

// CursorRequest opens the detail cursor on a view.
type CursorRequest struct {
	View     string `json:"view" example:"year:2024:03" validate:"required"`
	Filename string `json:"filename,omitempty" example:"2024-03-01_abc.json"`
	Index    int    `json:"index,omitempty" example:"0"`
}

// MemoryDTO is one memory as presented to clients.
type MemoryDTO struct {
	Filename     string   `json:"filename" example:"2024-03-01_abc.json" validate:"required"`
	Date         string   `json:"date" example:"2024-03-01 14:22:05 UTC"`
	TimeAgo      string   `json:"time_ago" example:"3 months ago"`
	MediaType    string   `json:"media_type" example:"Image"`
	Location     string   `json:"location,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	Place        string   `json:"place" example:"40.71°N, 74.01°W"`
	HasMedia     bool     `json:"has_media"`
	Displayable  bool     `json:"displayable"`
	MediaName    string   `json:"media_name,omitempty"`
	MediaURL     string   `json:"media_url,omitempty" example:"/api/memories/2024-03-01_abc.json/media"`
	MIME         string   `json:"mime,omitempty" example:"image/jpeg"`
	Kind         string   `json:"kind,omitempty" example:"image"`
	Overlays     []string `json:"overlays,omitempty"`
}

// MemoryListResponse wraps a list of memories.
type MemoryListResponse struct {
	Memories []MemoryDTO `json:"memories" validate:"required"`
	Total    int         `json:"total" example:"42"`
	Version  uint64      `json:"version" example:"3"`
}

// MonthGroupDTO is one month of the time projection.
type MonthGroupDTO struct {
	Month    int         `json:"month" example:"3"`
	Label    string      `json:"label" example:"March"`
	Count    int         `json:"count" example:"2"`
	View     string      `json:"view" example:"year:2024:03"`
	Memories []MemoryDTO `json:"memories"`
}

// YearGroupDTO is one year of the time projection.
type YearGroupDTO struct {
	Year   int             `json:"year" example:"2024"`
	Known  bool            `json:"known"`
	Label  string          `json:"label" example:"2024"`
	Count  int             `json:"count" example:"2"`
	Months []MonthGroupDTO `json:"months"`
}

// PlaceGroupDTO is one bucket of the place projection.
type PlaceGroupDTO struct {
	Key      string      `json:"key" example:"40.71,-74.01"`
	Label    string      `json:"label" example:"40.71°N, 74.01°W"`
	Count    int         `json:"count" example:"2"`
	View     string      `json:"view" example:"place:40.71,-74.01"`
	Memories []MemoryDTO `json:"memories"`
}

// CursorDTO is the detail cursor state.
type CursorDTO struct {
	Open        bool       `json:"open"`
	View        string     `json:"view,omitempty"`
	Index       int        `json:"index"`
	Len         int        `json:"len"`
	HasNext     bool       `json:"has_next"`
	HasPrevious bool       `json:"has_previous"`
	Memory      *MemoryDTO `json:"memory,omitempty"`
}

// mediaURL is the API path serving the media matched to filename.
func mediaURL(filename string) string {
	return "/api/memories/" + url.PathEscape(filename) + "/media"
}

func (h *Handler) memoryDTO(m *models.Memory) MemoryDTO {
	d := MemoryDTO{
		Filename:     m.Filename,
		Date:         m.Date,
		TimeAgo:      h.svc.TimeAgo(m),
		MediaType:    m.MediaType,
		Location:     m.Location,
		LocationName: m.LocationName,
		Place:        h.svc.PlaceName(m),
		HasMedia:     m.HasMedia(),
		Displayable:  m.Displayable(),
	}
	if m.Media != nil {
		d.MediaName = m.Media.Name
		d.MediaURL = mediaURL(m.Filename)
	}
	if m.Handle != nil {
		d.MIME = m.Handle.MIME
		d.Kind = m.Handle.Kind
	}
	for i := range m.Overlays {
		d.Overlays = append(d.Overlays, mediaURL(m.Filename)+"?overlay="+strconv.Itoa(i+1))
	}
	return d
}

func (h *Handler) memoryDTOs(ms []*models.Memory) []MemoryDTO {
	out := make([]MemoryDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, h.memoryDTO(m))
	}
	return out
}

func (h *Handler) yearGroupDTOs(groups []projector.YearGroup) []YearGroupDTO {
	out := make([]YearGroupDTO, 0, len(groups))
	for _, g := range groups {
		yd := YearGroupDTO{Year: g.Year, Known: g.Known, Label: g.Label, Count: g.Count}
		for _, mg := range g.Months {
			view := "year:unknown"
			if g.Known {
				view = "year:" + strconv.Itoa(g.Year) + ":" + twoDigits(int(mg.Month))
			}
			yd.Months = append(yd.Months, MonthGroupDTO{
				Month:    int(mg.Month),
				Label:    mg.Label,
				Count:    mg.Count,
				View:     view,
				Memories: h.memoryDTOs(mg.Memories),
			})
		}
		out = append(out, yd)
	}
	return out
}

func (h *Handler) placeGroupDTOs(groups []projector.PlaceGroup) []PlaceGroupDTO {
	out := make([]PlaceGroupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, PlaceGroupDTO{
			Key:      g.Key,
			Label:    g.Label,
			Count:    g.Count,
			View:     "place:" + g.Key,
			Memories: h.memoryDTOs(g.Memories),
		})
	}
	return out
}

func (h *Handler) cursorDTO(st *memoryservice.CursorState) CursorDTO {
	d := CursorDTO{
		Open:        st.Open,
		View:        st.View,
		Index:       st.Index,
		Len:         st.Len,
		HasNext:     st.HasNext,
		HasPrevious: st.HasPrevious,
	}
	if st.Memory != nil {
		m := h.memoryDTO(st.Memory)
		d.Memory = &m
	}
	return d
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
