package handlers

import (
	"net/http"
	"strconv"

	"github.com/caioniehues/clibridge/internal/journal"
)

// JournalHandler serves the session audit log.
type JournalHandler struct {
	journal *journal.Journal // nil when journaling is disabled
}

// NewJournalHandler creates a journal handler. A nil journal is allowed and
// yields empty results.
func NewJournalHandler(j *journal.Journal) *JournalHandler {
	return &JournalHandler{journal: j}
}

// Recent handles GET /api/v1/sessions/recent?limit=N.
func (h *JournalHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": []journal.Entry{}})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading session journal failed")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": entries})
}
