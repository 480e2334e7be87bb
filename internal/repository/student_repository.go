package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

// StudentRepository resolves students and supervisor rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	const query = `SELECT s.id, s.user_id, s.supervisor_id, u.full_name
        FROM students s JOIN users u ON u.id = s.user_id WHERE s.id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// FindByUserID resolves the student record behind a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	const query = `SELECT s.id, s.user_id, s.supervisor_id, u.full_name
        FROM students s JOIN users u ON u.id = s.user_id WHERE s.user_id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &student, nil
}

// ListBySupervisor returns the roster of students assigned to a supervisor.
func (r *StudentRepository) ListBySupervisor(ctx context.Context, supervisorID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.user_id, s.supervisor_id, u.full_name
        FROM students s JOIN users u ON u.id = s.user_id
        WHERE s.supervisor_id = $1 ORDER BY u.full_name, s.id`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, supervisorID); err != nil {
		return nil, fmt.Errorf("list students by supervisor: %w", err)
	}
	return students, nil
}
