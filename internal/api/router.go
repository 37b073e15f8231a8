package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lookback/internal/memoryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *memoryservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Feed and single memories.
	r.Get("/memories", h.ListMemories)
	r.Delete("/memories", h.Clear)
	r.Get("/memories/{filename}", h.GetMemory)
	r.Get("/memories/{filename}/media", h.Media)

	// Projections.
	r.Get("/flashbacks", h.Flashbacks)
	r.Get("/groups/time", h.TimeGroups)
	r.Get("/groups/places", h.PlaceGroups)

	// Catalog lifecycle.
	r.Post("/ingest", h.Ingest)
	r.Post("/save", h.Save)
	r.Post("/restore", h.Restore)

	// Detail cursor.
	r.Get("/cursor", h.GetCursor)
	r.Post("/cursor", h.OpenCursor)
	r.Delete("/cursor", h.CloseCursor)
	r.Post("/cursor/next", h.CursorNext)
	r.Post("/cursor/previous", h.CursorPrevious)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
