package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

// EpaRepository exposes read access to the competency hierarchy and the raw
// evaluation facts the aggregation pipeline folds over.
type EpaRepository struct {
	db *sqlx.DB
}

// NewEpaRepository instantiates the repository.
func NewEpaRepository(db *sqlx.DB) *EpaRepository {
	return &EpaRepository{db: db}
}

// Hierarchy returns the full tree skeleton in ascending id order. Groups
// without behaviors are included; the fold later reports them with zero
// counts rather than dropping them.
func (r *EpaRepository) Hierarchy(ctx context.Context) (*models.Hierarchy, error) {
	h := &models.Hierarchy{}

	if err := r.db.SelectContext(ctx, &h.CoreEpas,
		`SELECT id, name, weight FROM core_epas ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list core epas: %w", err)
	}
	if err := r.db.SelectContext(ctx, &h.SmallerEpas,
		`SELECT id, name, weight, core_epa_id FROM smaller_epas ORDER BY core_epa_id, id`); err != nil {
		return nil, fmt.Errorf("list smaller epas: %w", err)
	}
	if err := r.db.SelectContext(ctx, &h.Activities,
		`SELECT id, name, weight, smaller_epa_id FROM activities ORDER BY smaller_epa_id, id`); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	return h, nil
}

type behaviorFactRow struct {
	BehaviorID     int64          `db:"behavior_id"`
	Description    string         `db:"description"`
	ActivityID     int64          `db:"activity_id"`
	ActivityName   string         `db:"activity_name"`
	SmallerEpaID   int64          `db:"smaller_epa_id"`
	SmallerEpaName string         `db:"smaller_epa_name"`
	CoreEpaID      int64          `db:"core_epa_id"`
	CoreEpaName    string         `db:"core_epa_name"`
	IsMet          sql.NullBool   `db:"is_met"`
	Rating         sql.NullInt64  `db:"rating"`
	Comments       sql.NullString `db:"comments"`
	EvaluationDate sql.NullTime   `db:"evaluation_date"`
}

// BehaviorFacts returns every behavior leaf with its ancestor-name chain,
// left-joined with the student's evaluation when one exists. Ordering is
// (core, smaller, activity, behavior) ascending so downstream folds are
// deterministic without re-sorting.
func (r *EpaRepository) BehaviorFacts(ctx context.Context, studentID int64) ([]models.BehaviorFact, error) {
	const query = `SELECT b.id AS behavior_id, b.description,
        a.id AS activity_id, a.name AS activity_name,
        se.id AS smaller_epa_id, se.name AS smaller_epa_name,
        ce.id AS core_epa_id, ce.name AS core_epa_name,
        e.is_met, e.rating, e.comments, e.evaluation_date
        FROM behaviors b
        JOIN activities a ON a.id = b.activity_id
        JOIN smaller_epas se ON se.id = a.smaller_epa_id
        JOIN core_epas ce ON ce.id = se.core_epa_id
        LEFT JOIN evaluations e ON e.behavior_id = b.id AND e.student_id = $1
        ORDER BY ce.id, se.id, a.id, b.id`

	var rows []behaviorFactRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list behavior facts: %w", err)
	}

	facts := make([]models.BehaviorFact, 0, len(rows))
	for _, row := range rows {
		fact := models.BehaviorFact{
			BehaviorID:     row.BehaviorID,
			Description:    row.Description,
			ActivityID:     row.ActivityID,
			ActivityName:   row.ActivityName,
			SmallerEpaID:   row.SmallerEpaID,
			SmallerEpaName: row.SmallerEpaName,
			CoreEpaID:      row.CoreEpaID,
			CoreEpaName:    row.CoreEpaName,
		}
		if row.IsMet.Valid {
			eval := &models.EvaluationFact{IsMet: row.IsMet.Bool}
			if row.Rating.Valid {
				rating := int(row.Rating.Int64)
				eval.Rating = &rating
			}
			if row.Comments.Valid {
				comments := row.Comments.String
				eval.Comments = &comments
			}
			if row.EvaluationDate.Valid {
				eval.EvaluationDate = row.EvaluationDate.Time.UTC()
			}
			fact.Evaluation = eval
		}
		facts = append(facts, fact)
	}

	return facts, nil
}
