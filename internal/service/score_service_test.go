package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

type stubEpaRepo struct {
	hierarchy    *models.Hierarchy
	facts        []models.BehaviorFact
	hierarchyErr error
	factsErr     error
	factCalls    int
}

func (s *stubEpaRepo) Hierarchy(context.Context) (*models.Hierarchy, error) {
	if s.hierarchyErr != nil {
		return nil, s.hierarchyErr
	}
	return s.hierarchy, nil
}

func (s *stubEpaRepo) BehaviorFacts(context.Context, int64) ([]models.BehaviorFact, error) {
	s.factCalls++
	if s.factsErr != nil {
		return nil, s.factsErr
	}
	return s.facts, nil
}

func testHierarchy() *models.Hierarchy {
	return &models.Hierarchy{
		CoreEpas: []models.CoreEpa{
			{ID: 1, Name: "Patient Care", Weight: 1},
			{ID: 2, Name: "Communication", Weight: 1},
		},
		SmallerEpas: []models.SmallerEpa{
			{ID: 10, CoreEpaID: 1, Name: "History Taking", Weight: 1},
			{ID: 11, CoreEpaID: 1, Name: "Physical Exam", Weight: 1},
			{ID: 20, CoreEpaID: 2, Name: "Handover", Weight: 1},
		},
		Activities: []models.Activity{
			{ID: 100, SmallerEpaID: 10, Name: "Focused History", Weight: 1},
			{ID: 110, SmallerEpaID: 11, Name: "Abdominal Exam", Weight: 1},
			{ID: 200, SmallerEpaID: 20, Name: "SBAR Handover", Weight: 1},
		},
	}
}

func fact(behaviorID, activityID, smallerID, coreID int64, eval *models.EvaluationFact) models.BehaviorFact {
	names := map[int64]string{1: "Patient Care", 2: "Communication"}
	return models.BehaviorFact{
		BehaviorID:   behaviorID,
		Description:  "behavior",
		ActivityID:   activityID,
		SmallerEpaID: smallerID,
		CoreEpaID:    coreID,
		CoreEpaName:  names[coreID],
		Evaluation:   eval,
	}
}

func metFact(behaviorID, activityID, smallerID, coreID int64, date time.Time) models.BehaviorFact {
	return fact(behaviorID, activityID, smallerID, coreID, &models.EvaluationFact{IsMet: true, EvaluationDate: date})
}

func unmetFact(behaviorID, activityID, smallerID, coreID int64, date time.Time) models.BehaviorFact {
	return fact(behaviorID, activityID, smallerID, coreID, &models.EvaluationFact{IsMet: false, EvaluationDate: date})
}

func TestPercentageRounding(t *testing.T) {
	assert.Equal(t, 0, percentage(0, 0))
	assert.Equal(t, 0, percentage(3, 0))
	assert.Equal(t, 50, percentage(1, 2))
	assert.Equal(t, 33, percentage(1, 3))
	assert.Equal(t, 67, percentage(2, 3))
	// half-up: 2/8 = 25, 1/8 = 12.5 -> 13
	assert.Equal(t, 13, percentage(1, 8))
	assert.Equal(t, 100, percentage(7, 7))
}

func TestBuildBreakdownCountsAllLeaves(t *testing.T) {
	now := time.Now().UTC()
	facts := []models.BehaviorFact{
		metFact(1000, 100, 10, 1, now),
		unmetFact(1001, 100, 10, 1, now),
		fact(1002, 110, 11, 1, nil),
		metFact(2000, 200, 20, 2, now),
	}

	breakdown := buildBreakdown(testHierarchy(), facts)

	require.Len(t, breakdown.CoreEpas, 2)
	core1 := breakdown.CoreEpas[0]
	assert.Equal(t, int64(1), core1.ID)
	assert.Equal(t, 3, core1.TotalBehaviors)
	assert.Equal(t, 1, core1.MetBehaviors)
	assert.Equal(t, 33, core1.PercentageScore)

	core2 := breakdown.CoreEpas[1]
	assert.Equal(t, 1, core2.TotalBehaviors)
	assert.Equal(t, 100, core2.PercentageScore)

	// pending leaf still counts toward its ancestors' totals
	require.Len(t, breakdown.SmallerEpas, 3)
	exam := breakdown.SmallerEpas[1]
	assert.Equal(t, int64(11), exam.ID)
	assert.Equal(t, 1, exam.TotalBehaviors)
	assert.Equal(t, 0, exam.MetBehaviors)
	assert.Equal(t, 0, exam.PercentageScore)

	// only evaluated leaves surface in the behavior list
	require.Len(t, breakdown.Behaviors, 3)
	assert.Equal(t, int64(1000), breakdown.Behaviors[0].ID)
	assert.Equal(t, int64(2000), breakdown.Behaviors[2].ID)
}

func TestBuildBreakdownEmitsZeroGroups(t *testing.T) {
	breakdown := buildBreakdown(testHierarchy(), nil)

	require.Len(t, breakdown.CoreEpas, 2)
	require.Len(t, breakdown.SmallerEpas, 3)
	require.Len(t, breakdown.Activities, 3)
	assert.Empty(t, breakdown.Behaviors)
	for _, core := range breakdown.CoreEpas {
		assert.Equal(t, 0, core.PercentageScore)
		assert.Equal(t, 0, core.TotalBehaviors)
	}
}

func TestBuildBreakdownAncestorNames(t *testing.T) {
	breakdown := buildBreakdown(testHierarchy(), nil)

	history := breakdown.SmallerEpas[0]
	assert.Equal(t, "Patient Care", history.CoreEpaName)

	sbar := breakdown.Activities[2]
	assert.Equal(t, int64(200), sbar.ID)
	assert.Equal(t, "Handover", sbar.SmallerEpaName)
	assert.Equal(t, "Communication", sbar.CoreEpaName)
	assert.Equal(t, int64(2), sbar.CoreEpaID)
}

func TestScoreServiceResults(t *testing.T) {
	repo := &stubEpaRepo{
		hierarchy: testHierarchy(),
		facts:     []models.BehaviorFact{metFact(1000, 100, 10, 1, time.Now().UTC())},
	}
	svc := NewScoreService(repo, nil, nil, nil, time.Minute)

	breakdown, cached, err := svc.Results(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 100, breakdown.CoreEpas[0].PercentageScore)
	assert.Equal(t, 1, repo.factCalls)
}

func TestScoreServiceResultsRepoFailure(t *testing.T) {
	repo := &stubEpaRepo{hierarchyErr: errors.New("connection refused")}
	svc := NewScoreService(repo, nil, nil, nil, time.Minute)

	_, _, err := svc.Results(context.Background(), 7)
	require.Error(t, err)
}
