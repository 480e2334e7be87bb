package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/epa-eval-api/internal/models"
	appErrors "github.com/noah-isme/epa-eval-api/pkg/errors"
)

type fakeEvaluationRepo struct {
	upserted       *models.Evaluation
	upsertErr      error
	behaviorExists bool
	existsErr      error
}

func (f *fakeEvaluationRepo) Upsert(_ context.Context, eval *models.Evaluation) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = eval
	return nil
}

func (f *fakeEvaluationRepo) BehaviorExists(_ context.Context, _ int64) (bool, error) {
	return f.behaviorExists, f.existsErr
}

type fakeStudentRepo struct {
	student *models.Student
	err     error
}

func (f *fakeStudentRepo) FindByID(_ context.Context, _ int64) (*models.Student, error) {
	return f.student, f.err
}

type fakeAuditRepo struct {
	logs []*models.AuditLog
}

func (f *fakeAuditRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeInvalidator struct {
	invalidated []int64
}

func (f *fakeInvalidator) InvalidateStudent(_ context.Context, studentID int64) {
	f.invalidated = append(f.invalidated, studentID)
}

func newEvaluationFixture() (*EvaluationService, *fakeEvaluationRepo, *fakeAuditRepo, *fakeInvalidator) {
	evals := &fakeEvaluationRepo{behaviorExists: true}
	audits := &fakeAuditRepo{}
	invalidator := &fakeInvalidator{}
	svc := NewEvaluationService(EvaluationServiceParams{
		Evaluations: evals,
		Epas:        &stubEpaRepo{hierarchy: testHierarchy()},
		Students:    &fakeStudentRepo{student: &models.Student{ID: 7, SupervisorID: "sup-1", FullName: "Ada Sari"}},
		Audits:      audits,
		Scores:      invalidator,
		Now:         func() time.Time { return time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC) },
	})
	return svc, evals, audits, invalidator
}

func TestSubmitUpsertsAndInvalidates(t *testing.T) {
	svc, evals, audits, invalidator := newEvaluationFixture()

	eval, err := svc.Submit(context.Background(), "sup-1", SubmitEvaluationRequest{
		StudentID:  7,
		BehaviorID: 1000,
		IsMet:      true,
		Rating:     intPtr(4),
	})
	require.NoError(t, err)

	require.NotNil(t, evals.upserted)
	assert.Equal(t, int64(7), eval.StudentID)
	assert.Equal(t, int64(1000), eval.BehaviorID)
	assert.True(t, eval.IsMet)
	assert.Equal(t, 4, *eval.Rating)
	assert.Equal(t, time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC), eval.EvaluationDate)

	assert.Equal(t, []int64{7}, invalidator.invalidated)

	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionEvaluationSubmit, audits.logs[0].Action)
	assert.Equal(t, "7:1000", *audits.logs[0].ResourceID)
}

func TestSubmitRejectsRatingOutsideScale(t *testing.T) {
	svc, evals, _, _ := newEvaluationFixture()

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), "sup-1", SubmitEvaluationRequest{
			StudentID:  7,
			BehaviorID: 1000,
			Rating:     intPtr(rating),
		})
		require.Error(t, err)
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, appErrors.ErrInvalidRating.Code, appErr.Code)
	}
	assert.Nil(t, evals.upserted)
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	svc, _, _, _ := newEvaluationFixture()

	_, err := svc.Submit(context.Background(), "sup-1", SubmitEvaluationRequest{BehaviorID: 1000})
	require.Error(t, err)

	_, err = svc.Submit(context.Background(), "sup-1", SubmitEvaluationRequest{StudentID: 7})
	require.Error(t, err)
}

func TestSubmitUnknownStudent(t *testing.T) {
	svc := NewEvaluationService(EvaluationServiceParams{
		Evaluations: &fakeEvaluationRepo{behaviorExists: true},
		Epas:        &stubEpaRepo{},
		Students:    &fakeStudentRepo{err: sql.ErrNoRows},
	})

	_, err := svc.Submit(context.Background(), "sup-1", SubmitEvaluationRequest{StudentID: 99, BehaviorID: 1000})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSubmitForeignStudentForbidden(t *testing.T) {
	svc, _, _, invalidator := newEvaluationFixture()

	_, err := svc.Submit(context.Background(), "sup-2", SubmitEvaluationRequest{StudentID: 7, BehaviorID: 1000})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, invalidator.invalidated)
}

func TestSubmitUnknownBehavior(t *testing.T) {
	svc := NewEvaluationService(EvaluationServiceParams{
		Evaluations: &fakeEvaluationRepo{behaviorExists: false},
		Epas:        &stubEpaRepo{},
		Students:    &fakeStudentRepo{student: &models.Student{ID: 7, SupervisorID: "sup-1"}},
	})

	_, err := svc.Submit(context.Background(), "sup-1", SubmitEvaluationRequest{StudentID: 7, BehaviorID: 424242})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSubmitUpsertFailureIsUnavailable(t *testing.T) {
	svc := NewEvaluationService(EvaluationServiceParams{
		Evaluations: &fakeEvaluationRepo{behaviorExists: true, upsertErr: assert.AnError},
		Epas:        &stubEpaRepo{},
		Students:    &fakeStudentRepo{student: &models.Student{ID: 7, SupervisorID: "sup-1"}},
	})

	_, err := svc.Submit(context.Background(), "sup-1", SubmitEvaluationRequest{StudentID: 7, BehaviorID: 1000})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErr.Code)
}

func TestStudentEvaluationsSplit(t *testing.T) {
	now := time.Now().UTC()
	facts := []models.BehaviorFact{
		metFact(1000, 100, 10, 1, now),
		fact(1001, 100, 10, 1, nil),
		unmetFact(2000, 200, 20, 2, now),
		fact(2001, 200, 20, 2, nil),
	}
	svc := NewEvaluationService(EvaluationServiceParams{
		Evaluations: &fakeEvaluationRepo{},
		Epas:        &stubEpaRepo{facts: facts},
		Students:    &fakeStudentRepo{},
	})

	split, err := svc.StudentEvaluations(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, split.Pending, 2)
	assert.Equal(t, int64(1001), split.Pending[0].ID)
	assert.Equal(t, int64(2001), split.Pending[1].ID)

	require.Len(t, split.Evaluated, 2)
	assert.Equal(t, int64(1000), split.Evaluated[0].ID)
	assert.True(t, split.Evaluated[0].IsMet)
	assert.Equal(t, int64(2000), split.Evaluated[1].ID)
	assert.False(t, split.Evaluated[1].IsMet)
}

func TestSupervisorOverviewAverages(t *testing.T) {
	now := time.Now().UTC()
	ratedMet := fact(1000, 100, 10, 1, &models.EvaluationFact{IsMet: true, Rating: intPtr(4), EvaluationDate: now})
	ratedUnmet := fact(1001, 100, 10, 1, &models.EvaluationFact{IsMet: false, Rating: intPtr(2), EvaluationDate: now})
	facts := []models.BehaviorFact{
		ratedMet,
		ratedUnmet,
		fact(1002, 110, 11, 1, nil),
		metFact(2000, 200, 20, 2, now),
	}
	svc := NewEvaluationService(EvaluationServiceParams{
		Evaluations: &fakeEvaluationRepo{},
		Epas:        &stubEpaRepo{hierarchy: testHierarchy(), facts: facts},
		Students:    &fakeStudentRepo{},
	})

	summaries, err := svc.SupervisorOverview(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	patientCare := summaries[0]
	assert.Equal(t, int64(1), patientCare.CoreEpaID)
	assert.Equal(t, 3, patientCare.TotalBehaviors)
	assert.Equal(t, 2, patientCare.EvaluatedBehaviors)
	assert.Equal(t, 1, patientCare.MetBehaviors)
	assert.Equal(t, 33, patientCare.PercentageScore)
	require.NotNil(t, patientCare.AverageRating)
	assert.InEpsilon(t, 3.0, *patientCare.AverageRating, 1e-9)

	communication := summaries[1]
	assert.Equal(t, 1, communication.MetBehaviors)
	assert.Nil(t, communication.AverageRating)
}
