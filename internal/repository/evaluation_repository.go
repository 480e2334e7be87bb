package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

// EvaluationRepository handles evaluation persistence.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Upsert inserts or replaces the evaluation for a (student, behavior) pair.
// The conflict target makes resubmission last-write-wins in a single atomic
// statement; no partial row is ever observable.
func (r *EvaluationRepository) Upsert(ctx context.Context, eval *models.Evaluation) error {
	if eval.EvaluationDate.IsZero() {
		eval.EvaluationDate = time.Now().UTC()
	}
	const query = `INSERT INTO evaluations (student_id, behavior_id, is_met, rating, comments, evaluation_date)
        VALUES (:student_id, :behavior_id, :is_met, :rating, :comments, :evaluation_date)
        ON CONFLICT (student_id, behavior_id)
        DO UPDATE SET is_met = EXCLUDED.is_met, rating = EXCLUDED.rating,
            comments = EXCLUDED.comments, evaluation_date = EXCLUDED.evaluation_date`
	if _, err := r.db.NamedExecContext(ctx, query, eval); err != nil {
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}

// ListByStudent returns all recorded evaluations for a student ordered by
// evaluation date descending.
func (r *EvaluationRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Evaluation, error) {
	const query = `SELECT student_id, behavior_id, is_met, rating, comments, evaluation_date
        FROM evaluations WHERE student_id = $1 ORDER BY evaluation_date DESC, behavior_id`
	var evals []models.Evaluation
	if err := r.db.SelectContext(ctx, &evals, query, studentID); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evals, nil
}

// BehaviorExists reports whether a behavior leaf is part of the hierarchy.
func (r *EvaluationRepository) BehaviorExists(ctx context.Context, behaviorID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM behaviors WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, behaviorID); err != nil {
		return false, fmt.Errorf("check behavior: %w", err)
	}
	return exists, nil
}
