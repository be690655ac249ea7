package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/practice-hub/internal/clock"
	"github.com/wolfman30/practice-hub/internal/compliance"
	"github.com/wolfman30/practice-hub/internal/drafts"
	"github.com/wolfman30/practice-hub/internal/notes"
	"github.com/wolfman30/practice-hub/internal/observability/metrics"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

const maxDraftBody = 1 << 20

// DraftHandlerConfig wires the draft endpoints.
type DraftHandlerConfig struct {
	Store    drafts.Store
	Notes    notes.Repository
	Audit    *compliance.AuditService
	Clock    clock.Clock
	Teardown drafts.Teardown
	Interval time.Duration
	Debounce time.Duration
	Logger   *logging.Logger
	Metrics  *metrics.DraftMetrics
}

// DraftHandler serves draft snapshots over REST and live editing sessions
// over WebSocket.
type DraftHandler struct {
	store    drafts.Store
	notes    notes.Repository
	audit    *compliance.AuditService
	clock    clock.Clock
	teardown drafts.Teardown
	interval time.Duration
	debounce time.Duration
	logger   *logging.Logger
	metrics  *metrics.DraftMetrics
}

func NewDraftHandler(cfg DraftHandlerConfig) *DraftHandler {
	if cfg.Store == nil {
		panic("handlers: draft store required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &DraftHandler{
		store:    cfg.Store,
		notes:    cfg.Notes,
		audit:    cfg.Audit,
		clock:    cfg.Clock,
		teardown: cfg.Teardown,
		interval: cfg.Interval,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

func (h *DraftHandler) draftKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if !validDraftKey(key) {
		jsonError(w, "invalid draft key", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

// GetDraft returns the stored record for a key.
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	key, ok := h.draftKey(w, r)
	if !ok {
		return
	}
	record, err := drafts.Load[json.RawMessage](r.Context(), h.store, key)
	if err != nil {
		h.metrics.ObserveStoreError("get")
		h.logger.Error("drafts: load failed", "draft_key", key, "error", err)
		jsonError(w, "draft store unavailable", http.StatusInternalServerError)
		return
	}
	if record == nil {
		jsonError(w, "draft not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// HeadDraft reports existence through the status code.
func (h *DraftHandler) HeadDraft(w http.ResponseWriter, r *http.Request) {
	key, ok := h.draftKey(w, r)
	if !ok {
		return
	}
	exists, err := drafts.Exists(r.Context(), h.store, key)
	switch {
	case err != nil:
		h.metrics.ObserveStoreError("get")
		h.logger.Error("drafts: existence check failed", "draft_key", key, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	case exists:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// PutDraft stores the request body as the draft data.
func (h *DraftHandler) PutDraft(w http.ResponseWriter, r *http.Request) {
	key, ok := h.draftKey(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDraftBody+1))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxDraftBody {
		jsonError(w, "draft too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !json.Valid(body) {
		jsonError(w, "body must be valid JSON", http.StatusBadRequest)
		return
	}

	if err := drafts.Save(r.Context(), h.store, key, json.RawMessage(body), h.clock.Now()); err != nil {
		h.metrics.ObserveWrite("api", "error")
		h.metrics.ObserveStoreError("set")
		h.logger.Error("drafts: save failed", "draft_key", key, "error", err)
		if errors.Is(err, drafts.ErrQuotaExceeded) {
			jsonError(w, "draft storage quota exceeded", http.StatusInsufficientStorage)
			return
		}
		jsonError(w, "draft store unavailable", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveWrite("api", "ok")

	record, err := drafts.Load[json.RawMessage](r.Context(), h.store, key)
	if err != nil || record == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// DeleteDraft removes a draft. Deleting a missing draft succeeds.
func (h *DraftHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	key, ok := h.draftKey(w, r)
	if !ok {
		return
	}
	if err := drafts.Clear(r.Context(), h.store, key); err != nil {
		h.metrics.ObserveStoreError("delete")
		h.logger.Error("drafts: clear failed", "draft_key", key, "error", err)
		jsonError(w, "draft store unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
