package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

// NoteRepository persists supervisor annotations about students.
type NoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository creates a new note repository.
func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create stores a new note.
func (r *NoteRepository) Create(ctx context.Context, note *models.StudentNote) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_notes (id, student_id, supervisor_id, note, created_at)
        VALUES (:id, :student_id, :supervisor_id, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		return fmt.Errorf("create student note: %w", err)
	}
	return nil
}

// ListByStudent returns notes for a student, newest first.
func (r *NoteRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.StudentNote, error) {
	const query = `SELECT id, student_id, supervisor_id, note, created_at
        FROM student_notes WHERE student_id = $1 ORDER BY created_at DESC`
	var notes []models.StudentNote
	if err := r.db.SelectContext(ctx, &notes, query, studentID); err != nil {
		return nil, fmt.Errorf("list student notes: %w", err)
	}
	return notes, nil
}
