package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/practice-hub/internal/drafts"
	httpmiddleware "github.com/wolfman30/practice-hub/internal/http/middleware"
	"github.com/wolfman30/practice-hub/internal/notes"
)

const soapKeyPrefix = "soap:"

// EditorInbound is a message from the editing client.
type EditorInbound struct {
	Type       string          `json:"type"` // "update", "save", "load", "clear", "config", "ping"
	Data       json.RawMessage `json:"data,omitempty"`
	Enabled    *bool           `json:"enabled,omitempty"`
	IntervalMs int64           `json:"intervalMs,omitempty"`
}

// EditorOutbound is a message to the editing client.
type EditorOutbound struct {
	Type     string                               `json:"type"` // "session", "draft", "saved", "saved_locally", "cleared", "pong", "error"
	Key      string                               `json:"key,omitempty"`
	HasDraft *bool                                `json:"hasDraft,omitempty"`
	Draft    *drafts.StoredDraft[json.RawMessage] `json:"draft,omitempty"`
	Text     string                               `json:"text,omitempty"`
	At       string                               `json:"at,omitempty"`
}

// HandleEditor upgrades to a WebSocket editing session for the draft key.
// The query parameter autosave=false starts the session with autosave off.
func (h *DraftHandler) HandleEditor(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !validDraftKey(key) {
		jsonError(w, "invalid draft key", http.StatusBadRequest)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveEditor(conn, r, key)
	}).ServeHTTP(w, r)
}

func (h *DraftHandler) serveEditor(conn *websocket.Conn, r *http.Request, key string) {
	ctx := context.WithoutCancel(r.Context())
	send := func(msg EditorOutbound) {
		if err := websocket.JSON.Send(conn, msg); err != nil {
			h.logger.Debug("drafts: editor send failed", "draft_key", key, "error", err)
		}
	}

	cfg := drafts.Config[json.RawMessage]{
		Key:      key,
		Interval: h.interval,
		Debounce: h.debounce,
		Disabled: strings.EqualFold(r.URL.Query().Get("autosave"), "false"),
		Store:    h.store,
		Clock:    h.clock,
		Teardown: h.teardown,
		Logger:   h.logger,
		Metrics:  h.metrics,
		Notifier: drafts.NotifierFunc(func(_ context.Context, n drafts.Notification) {
			send(EditorOutbound{Type: string(n.Kind), Key: n.Key, At: n.At.UTC().Format(time.RFC3339)})
		}),
	}
	if onSave := h.serverSave(key, staffSubject(r)); onSave != nil {
		cfg.OnSave = onSave
	}

	existing, err := drafts.Load[json.RawMessage](ctx, h.store, key)
	if err != nil {
		h.metrics.ObserveStoreError("get")
		h.logger.Warn("drafts: load failed", "draft_key", key, "error", err)
	}
	if existing != nil {
		cfg.Data = existing.Data
		cfg.Restored = true
	}

	session, err := drafts.NewSession(cfg)
	if err != nil {
		send(EditorOutbound{Type: "error", Text: err.Error()})
		return
	}
	defer func() {
		session.Flush(ctx)
		session.Close()
		h.logger.Info("drafts: editor closed", "draft_key", key)
	}()

	hasDraft := existing != nil
	send(EditorOutbound{Type: "session", Key: key, HasDraft: &hasDraft, Draft: existing})
	h.logger.Info("drafts: editor opened", "draft_key", key, "has_draft", hasDraft)

	for {
		var msg EditorInbound
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("drafts: editor connection closed", "draft_key", key, "error", err)
			return
		}
		switch msg.Type {
		case "update":
			session.Update(msg.Data)
		case "save":
			session.SaveNow(ctx)
			send(EditorOutbound{Type: "draft", Key: key, Draft: session.LoadDraft(ctx)})
		case "load":
			send(EditorOutbound{Type: "draft", Key: key, Draft: session.LoadDraft(ctx)})
		case "clear":
			session.ClearDraft(ctx)
			send(EditorOutbound{Type: "cleared", Key: key})
		case "config":
			if msg.IntervalMs > 0 {
				session.SetInterval(time.Duration(msg.IntervalMs) * time.Millisecond)
			}
			if msg.Enabled != nil {
				session.SetEnabled(*msg.Enabled)
			}
		case "ping":
			send(EditorOutbound{Type: "pong"})
		default:
			send(EditorOutbound{Type: "error", Text: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

// serverSave returns the server-side save for keys that map to a domain
// record, or nil when the draft is local-only.
func (h *DraftHandler) serverSave(key, actorID string) func(context.Context, json.RawMessage) error {
	if h.notes == nil || !strings.HasPrefix(key, soapKeyPrefix) {
		return nil
	}
	noteID := strings.TrimPrefix(key, soapKeyPrefix)
	return func(ctx context.Context, data json.RawMessage) error {
		var note notes.Note
		if err := json.Unmarshal(data, &note); err != nil {
			return fmt.Errorf("handlers: decode soap note: %w", err)
		}
		note.ID = noteID
		if err := h.notes.Upsert(ctx, &note); err != nil {
			return err
		}
		if err := h.audit.LogNoteSaved(ctx, actorID, note.PatientID, note.ID); err != nil {
			h.logger.Error("drafts: audit note save failed", "note_id", note.ID, "error", err)
		}
		return nil
	}
}

func staffSubject(r *http.Request) string {
	claims, ok := httpmiddleware.StaffClaimsFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.Subject
}
