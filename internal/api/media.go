package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Media handles GET /api/memories/{filename}/media.
//
// Only paths recorded in the catalog are served. ?overlay=N (1-based)
// selects an overlay instead of the main asset.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Memory(chi.URLParam(r, "filename"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if m.Media == nil {
		http.NotFound(w, r)
		return
	}
	path := m.Media.Path
	if raw := r.URL.Query().Get("overlay"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > len(m.Overlays) {
			http.Error(w, "invalid overlay", http.StatusBadRequest)
			return
		}
		path = m.Overlays[n-1].Path
	} else if m.Handle != nil && m.Handle.MIME != "" {
		w.Header().Set("Content-Type", m.Handle.MIME)
	}
	if info, statErr := os.Stat(path); statErr != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
