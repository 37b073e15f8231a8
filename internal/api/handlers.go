package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/memoryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *memoryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *memoryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListMemories handles GET /api/memories.
//
//	@Summary		Recency feed, newest first
//	@Tags			memories
//	@Produce		json
//	@Param			limit	query		int		false	"Max items"
//	@Success		200		{object}	MemoryListResponse
//	@Security		BearerAuth
//	@Router			/memories [get]
func (h *Handler) ListMemories(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, MemoryListResponse{
		Memories: h.memoryDTOs(h.svc.Feed(limit)),
		Total:    h.svc.Len(),
		Version:  h.svc.Version(),
	})
}

// GetMemory handles GET /api/memories/{filename}.
//
//	@Summary		Get one memory by source filename
//	@Tags			memories
//	@Produce		json
//	@Param			filename	path		string	true	"Metadata filename"
//	@Success		200			{object}	MemoryDTO
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memories/{filename} [get]
func (h *Handler) GetMemory(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Memory(chi.URLParam(r, "filename"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.memoryDTO(m))
}

// Flashbacks handles GET /api/flashbacks.
//
//	@Summary		Random sample of memories
//	@Tags			views
//	@Produce		json
//	@Success		200	{object}	MemoryListResponse
//	@Security		BearerAuth
//	@Router			/flashbacks [get]
func (h *Handler) Flashbacks(w http.ResponseWriter, _ *http.Request) {
	sample := h.svc.Flashbacks()
	writeJSON(w, http.StatusOK, MemoryListResponse{
		Memories: h.memoryDTOs(sample),
		Total:    len(sample),
		Version:  h.svc.Version(),
	})
}

// TimeGroups handles GET /api/groups/time.
//
//	@Summary		Memories grouped by year and month
//	@Tags			views
//	@Produce		json
//	@Success		200	{array}	YearGroupDTO
//	@Security		BearerAuth
//	@Router			/groups/time [get]
func (h *Handler) TimeGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"years":   h.yearGroupDTOs(h.svc.TimeGroups()),
		"version": h.svc.Version(),
	})
}

// PlaceGroups handles GET /api/groups/places.
//
//	@Summary		Memories grouped by place, largest first
//	@Tags			views
//	@Produce		json
//	@Success		200	{array}	PlaceGroupDTO
//	@Security		BearerAuth
//	@Router			/groups/places [get]
func (h *Handler) PlaceGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"places":  h.placeGroupDTOs(h.svc.PlaceGroups()),
		"version": h.svc.Version(),
	})
}

// Ingest handles POST /api/ingest.
//
//	@Summary		Replace the catalog with the contents of a folder
//	@Tags			catalog
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IngestRequest	true	"Folder to ingest"
//	@Success		200		{object}	memoryservice.IngestResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ingest [post]
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.IngestFolder(r.Context(), req.Path)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrSuperseded):
			writeJSON(w, http.StatusConflict, errorBody("superseded by a newer ingest"))
		case errors.Is(err, fs.ErrNotExist):
			writeJSON(w, http.StatusNotFound, errorBody("folder not found"))
		default:
			slog.Error("ingest failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Save handles POST /api/save.
//
//	@Summary		Persist the current catalog
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	map[string]int
//	@Security		BearerAuth
//	@Router			/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Save(r.Context())
	if err != nil {
		slog.Error("save failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to save data"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": n})
}

// Restore handles POST /api/restore.
//
//	@Summary		Reload the last saved catalog
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	map[string]int
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/restore [post]
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Restore(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNoPersisted):
			writeJSON(w, http.StatusNotFound, errorBody("no saved catalog"))
		case errors.Is(err, apperr.ErrSuperseded):
			writeJSON(w, http.StatusConflict, errorBody("superseded by a newer ingest"))
		default:
			slog.Error("restore failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"loaded": n})
}

// Clear handles DELETE /api/memories.
//
//	@Summary		Empty the catalog and the saved copy
//	@Tags			catalog
//	@Success		204	"Catalog cleared"
//	@Security		BearerAuth
//	@Router			/memories [delete]
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		slog.Error("clear failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to clear memories"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCursor handles GET /api/cursor.
//
//	@Summary		Current detail cursor
//	@Tags			cursor
//	@Produce		json
//	@Success		200	{object}	CursorDTO
//	@Security		BearerAuth
//	@Router			/cursor [get]
func (h *Handler) GetCursor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cursorDTO(h.svc.CursorState()))
}

// OpenCursor handles POST /api/cursor.
//
//	@Summary		Open the detail cursor on a view
//	@Tags			cursor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CursorRequest	true	"View and position"
//	@Success		200		{object}	CursorDTO
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cursor [post]
func (h *Handler) OpenCursor(w http.ResponseWriter, r *http.Request) {
	var req CursorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	st, err := h.svc.OpenCursor(req.View, req.Filename, req.Index)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidView):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, h.cursorDTO(st))
}

// CursorNext handles POST /api/cursor/next.
//
//	@Summary		Step the cursor forward
//	@Tags			cursor
//	@Produce		json
//	@Success		200	{object}	CursorDTO
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cursor/next [post]
func (h *Handler) CursorNext(w http.ResponseWriter, _ *http.Request) {
	h.writeCursor(w)(h.svc.CursorNext())
}

// CursorPrevious handles POST /api/cursor/previous.
//
//	@Summary		Step the cursor back
//	@Tags			cursor
//	@Produce		json
//	@Success		200	{object}	CursorDTO
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cursor/previous [post]
func (h *Handler) CursorPrevious(w http.ResponseWriter, _ *http.Request) {
	h.writeCursor(w)(h.svc.CursorPrevious())
}

// CloseCursor handles DELETE /api/cursor.
//
//	@Summary		Close the detail cursor
//	@Tags			cursor
//	@Success		204	"Cursor closed"
//	@Security		BearerAuth
//	@Router			/cursor [delete]
func (h *Handler) CloseCursor(w http.ResponseWriter, _ *http.Request) {
	h.svc.CloseCursor()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCursor(w http.ResponseWriter) func(*memoryservice.CursorState, error) {
	return func(st *memoryservice.CursorState, err error) {
		if errors.Is(err, apperr.ErrCursorClosed) {
			writeJSON(w, http.StatusConflict, errorBody("cursor is closed"))
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		writeJSON(w, http.StatusOK, h.cursorDTO(st))
	}
}
