package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/practice-hub/internal/compliance"
	"github.com/wolfman30/practice-hub/internal/notes"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

const maxAuditEvents = 200

// NoteHandler serves saved SOAP notes and their access trail.
type NoteHandler struct {
	repo   notes.Repository
	audit  *compliance.AuditService
	logger *logging.Logger
}

// NewNoteHandler builds the notes endpoints. audit may be nil.
func NewNoteHandler(repo notes.Repository, audit *compliance.AuditService, logger *logging.Logger) *NoteHandler {
	if repo == nil {
		panic("handlers: notes repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &NoteHandler{repo: repo, audit: audit, logger: logger}
}

// GetNote returns a note by id.
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			jsonError(w, "note not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load note", http.StatusInternalServerError)
		return
	}
	if err := h.audit.LogNoteRead(r.Context(), staffSubject(r), note.PatientID, note.ID, chimw.GetReqID(r.Context())); err != nil {
		// Notes are not served without an audit record.
		h.logger.Error("notes: audit read failed", "note_id", note.ID, "error", err)
		jsonError(w, "audit unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// GetNoteAudit returns the access trail for a note, newest first.
func (h *NoteHandler) GetNoteAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := h.audit.QueryEvents(r.Context(), compliance.AuditFilter{ResourceID: id, Limit: maxAuditEvents})
	if err != nil {
		h.logger.Error("notes: audit query failed", "note_id", id, "error", err)
		jsonError(w, "failed to load audit trail", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []compliance.AuditEvent{}
	}
	if err := h.audit.LogEvent(r.Context(), compliance.AuditEvent{
		EventType:  compliance.EventAuditRead,
		ActorID:    staffSubject(r),
		ResourceID: id,
	}); err != nil {
		h.logger.Error("notes: audit trail read not recorded", "note_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"noteId": id, "events": events})
}
