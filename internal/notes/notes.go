// Package notes stores SOAP clinical notes (subjective, objective,
// assessment, plan) written by practitioners.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoteNotFound is returned when no note has the requested id.
var ErrNoteNotFound = errors.New("notes: note not found")

// Note is a SOAP note.
type Note struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patientId"`
	Subjective string    `json:"subjective"`
	Objective  string    `json:"objective"`
	Assessment string    `json:"assessment"`
	Plan       string    `json:"plan"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Validate checks the fields required for persistence.
func (n *Note) Validate() error {
	if n == nil {
		return errors.New("notes: note cannot be nil")
	}
	if strings.TrimSpace(n.PatientID) == "" {
		return errors.New("notes: patient id required")
	}
	return nil
}

// Repository persists notes.
type Repository interface {
	// Upsert inserts or replaces a note. An empty ID is assigned a new one.
	Upsert(ctx context.Context, note *Note) error
	Get(ctx context.Context, id string) (*Note, error)
}

// SQLRepository keeps notes in the soap_notes table.
type SQLRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(db *sql.DB) *SQLRepository {
	if db == nil {
		panic("notes: db required")
	}
	return &SQLRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *SQLRepository) Upsert(ctx context.Context, note *Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.UpdatedAt = r.now()

	query := `
		INSERT INTO soap_notes (id, patient_id, subjective, objective, assessment, plan, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			subjective = EXCLUDED.subjective,
			objective = EXCLUDED.objective,
			assessment = EXCLUDED.assessment,
			plan = EXCLUDED.plan,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		note.ID,
		note.PatientID,
		note.Subjective,
		note.Objective,
		note.Assessment,
		note.Plan,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("notes: upsert %s: %w", note.ID, err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*Note, error) {
	query := `
		SELECT id, patient_id, subjective, objective, assessment, plan, updated_at
		FROM soap_notes
		WHERE id = $1
	`
	var note Note
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&note.ID,
		&note.PatientID,
		&note.Subjective,
		&note.Objective,
		&note.Assessment,
		&note.Plan,
		&note.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("notes: get %s: %w", id, err)
	}
	return &note, nil
}

// InMemoryRepository is a Repository for local development and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	notes map[string]Note
}

var _ Repository = (*InMemoryRepository)(nil)

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{notes: make(map[string]Note)}
}

func (r *InMemoryRepository) Upsert(_ context.Context, note *Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[note.ID] = *note
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	note, ok := r.notes[id]
	if !ok {
		return nil, ErrNoteNotFound
	}
	return &note, nil
}
