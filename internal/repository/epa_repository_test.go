package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEpaMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEpaRepositoryHierarchy(t *testing.T) {
	db, mock, cleanup := newEpaMock(t)
	defer cleanup()
	repo := NewEpaRepository(db)

	mock.ExpectQuery("SELECT id, name, weight FROM core_epas ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "weight"}).
			AddRow(int64(1), "Patient Care", 1.0).
			AddRow(int64(2), "Communication", 1.0))
	mock.ExpectQuery("SELECT id, name, weight, core_epa_id FROM smaller_epas").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "weight", "core_epa_id"}).
			AddRow(int64(10), "History Taking", 1.0, int64(1)))
	mock.ExpectQuery("SELECT id, name, weight, smaller_epa_id FROM activities").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "weight", "smaller_epa_id"}).
			AddRow(int64(100), "Initial interview", 1.0, int64(10)))

	h, err := repo.Hierarchy(context.Background())
	require.NoError(t, err)
	require.Len(t, h.CoreEpas, 2)
	require.Len(t, h.SmallerEpas, 1)
	require.Len(t, h.Activities, 1)
	assert.Equal(t, "Patient Care", h.CoreEpas[0].Name)
	assert.Equal(t, int64(1), h.SmallerEpas[0].CoreEpaID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEpaRepositoryBehaviorFacts(t *testing.T) {
	db, mock, cleanup := newEpaMock(t)
	defer cleanup()
	repo := NewEpaRepository(db)

	date := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"behavior_id", "description", "activity_id", "activity_name",
		"smaller_epa_id", "smaller_epa_name", "core_epa_id", "core_epa_name",
		"is_met", "rating", "comments", "evaluation_date",
	}).
		AddRow(int64(1000), "Obtains informed consent", int64(100), "Initial interview",
			int64(10), "History Taking", int64(1), "Patient Care",
			true, int64(4), "good", date).
		AddRow(int64(1001), "Documents allergies", int64(100), "Initial interview",
			int64(10), "History Taking", int64(1), "Patient Care",
			nil, nil, nil, nil)
	mock.ExpectQuery("SELECT b.id AS behavior_id").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	facts, err := repo.BehaviorFacts(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, facts, 2)

	evaluated := facts[0]
	require.NotNil(t, evaluated.Evaluation)
	assert.True(t, evaluated.Evaluation.IsMet)
	require.NotNil(t, evaluated.Evaluation.Rating)
	assert.Equal(t, 4, *evaluated.Evaluation.Rating)
	assert.Equal(t, date, evaluated.Evaluation.EvaluationDate)
	assert.Equal(t, "Patient Care", evaluated.CoreEpaName)

	pending := facts[1]
	assert.Nil(t, pending.Evaluation)
	assert.Equal(t, int64(1001), pending.BehaviorID)
	require.NoError(t, mock.ExpectationsWereMet())
}
