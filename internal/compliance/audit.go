// Package compliance records who touched patient health information.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of PHI access event.
type AuditEventType string

const (
	// EventNoteRead is logged when a SOAP note is returned to a staff member.
	EventNoteRead AuditEventType = "phi.note_read"
	// EventNoteSaved is logged when an editing session persists a SOAP note.
	EventNoteSaved AuditEventType = "phi.note_saved"
	// EventAuditRead is logged when the audit trail itself is viewed.
	EventAuditRead AuditEventType = "phi.audit_read"
)

// AuditEvent represents an immutable PHI access record.
type AuditEvent struct {
	ID         string          `json:"id"`
	EventType  AuditEventType  `json:"event_type"`
	ActorID    string          `json:"actor_id,omitempty"`
	PatientID  string          `json:"patient_id,omitempty"`
	ResourceID string          `json:"resource_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	Source    string `json:"source,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// AuditService writes PHI access events. A nil *AuditService discards events.
type AuditService struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}

	query := `
		INSERT INTO phi_audit_events (
			id, event_type, actor_id, patient_id, resource_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullString(event.ActorID),
		nullString(event.PatientID),
		event.ResourceID,
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// LogNoteRead logs a staff member viewing a SOAP note.
func (s *AuditService) LogNoteRead(ctx context.Context, actorID, patientID, noteID, requestID string) error {
	return s.logNote(ctx, EventNoteRead, actorID, patientID, noteID, AuditDetails{Source: "api", RequestID: requestID})
}

// LogNoteSaved logs an editing session persisting a SOAP note.
func (s *AuditService) LogNoteSaved(ctx context.Context, actorID, patientID, noteID string) error {
	return s.logNote(ctx, EventNoteSaved, actorID, patientID, noteID, AuditDetails{Source: "draft_editor"})
}

func (s *AuditService) logNote(ctx context.Context, eventType AuditEventType, actorID, patientID, noteID string, details AuditDetails) error {
	detailsJSON, _ := json.Marshal(details)
	return s.LogEvent(ctx, AuditEvent{
		EventType:  eventType,
		ActorID:    actorID,
		PatientID:  patientID,
		ResourceID: noteID,
		Details:    detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := `
		SELECT id, event_type, actor_id, patient_id, resource_id, details, created_at
		FROM phi_audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	add := func(clause string, value interface{}) {
		query += fmt.Sprintf(" AND "+clause, argIdx)
		args = append(args, value)
		argIdx++
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if !filter.StartTime.IsZero() {
		add("created_at >= $%d", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		add("created_at <= $%d", filter.EndTime)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var actorID, patientID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &actorID, &patientID, &e.ResourceID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.ActorID = actorID.String
		e.PatientID = patientID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read audit events: %w", err)
	}
	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	ResourceID string
	PatientID  string
	ActorID    string
	EventType  AuditEventType
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
