package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

type stubScoreProvider struct {
	breakdown *models.ScoreBreakdown
	err       error
}

func (s *stubScoreProvider) Results(_ context.Context, _ int64) (*models.ScoreBreakdown, bool, error) {
	return s.breakdown, false, s.err
}

func achievementFixture(now time.Time) *models.ScoreBreakdown {
	recent := now.Add(-24 * time.Hour)
	stale := now.Add(-90 * 24 * time.Hour)
	return &models.ScoreBreakdown{
		CoreEpas: []models.CoreEpaScore{
			{ID: 1, Name: "Patient Care", MetBehaviors: 9, TotalBehaviors: 10},
			{ID: 2, Name: "Communication", MetBehaviors: 4, TotalBehaviors: 10},
			{ID: 3, Name: "Professionalism", MetBehaviors: 0, TotalBehaviors: 0},
		},
		SmallerEpas: []models.SmallerEpaScore{
			{ID: 10, Name: "History Taking", CoreEpaName: "Patient Care", MetBehaviors: 10, TotalBehaviors: 10},
			{ID: 20, Name: "Handover", CoreEpaName: "Communication", MetBehaviors: 8, TotalBehaviors: 10},
		},
		Behaviors: []models.BehaviorRecord{
			{ID: 1, CoreEpaID: 1, CoreEpaName: "Patient Care", IsMet: true, EvaluationDate: recent},
			{ID: 2, CoreEpaID: 1, CoreEpaName: "Patient Care", IsMet: true, EvaluationDate: recent},
			{ID: 3, CoreEpaID: 1, CoreEpaName: "Patient Care", IsMet: false, EvaluationDate: recent},
			{ID: 4, CoreEpaID: 2, CoreEpaName: "Communication", IsMet: true, EvaluationDate: recent},
			{ID: 5, CoreEpaID: 2, CoreEpaName: "Communication", IsMet: false, EvaluationDate: recent},
			{ID: 6, CoreEpaID: 2, CoreEpaName: "Communication", IsMet: true, EvaluationDate: stale},
		},
	}
}

func TestAchievementsAwardsAllTiers(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewAchievementService(AchievementServiceParams{
		Scores: &stubScoreProvider{breakdown: achievementFixture(now)},
		Now:    func() time.Time { return now },
	})

	got, err := svc.Achievements(context.Background(), 1)
	require.NoError(t, err)

	// gold: Patient Care 9/10. silver: History Taking only (Handover is 8/10).
	// bronze: Patient Care 2/3 misses 0.7, Communication 1/2 misses 0.7.
	require.Len(t, got.Badges, 2)
	assert.Equal(t, models.BadgeGold, got.Badges[0].Level)
	assert.Equal(t, "Patient Care Mastery", got.Badges[0].Title)
	assert.Equal(t, models.BadgeSilver, got.Badges[1].Level)
	assert.Equal(t, "History Taking Mastery", got.Badges[1].Title)

	assert.Equal(t, 2, got.Stats.TotalBadges)
	assert.Equal(t, 1, got.Stats.GoldBadges)
	assert.Equal(t, 1, got.Stats.SilverBadges)
	assert.Equal(t, 0, got.Stats.BronzeBadges)
}

func TestRecentBadgeAwardedInsideWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	breakdown := achievementFixture(now)
	// raise Patient Care recent ratio to 3/3
	breakdown.Behaviors[2].IsMet = true
	svc := NewAchievementService(AchievementServiceParams{
		Scores: &stubScoreProvider{breakdown: breakdown},
		Now:    func() time.Time { return now },
	})

	got, err := svc.Achievements(context.Background(), 1)
	require.NoError(t, err)

	bronze := make([]models.Badge, 0, 1)
	for _, badge := range got.Badges {
		if badge.Level == models.BadgeBronze {
			bronze = append(bronze, badge)
		}
	}
	require.Len(t, bronze, 1)
	assert.Equal(t, "Recent Progress in Patient Care", bronze[0].Title)
	assert.Contains(t, bronze[0].Description, "last 30 days")
}

func TestMasteryBoundaryIsInclusive(t *testing.T) {
	assert.True(t, qualifies(9, 10, 0.9))
	assert.False(t, qualifies(8, 10, 0.9))
	assert.False(t, qualifies(0, 0, 0.9))
}

func TestAchievementsPropagatesScoreError(t *testing.T) {
	svc := NewAchievementService(AchievementServiceParams{
		Scores: &stubScoreProvider{err: assert.AnError},
	})

	_, err := svc.Achievements(context.Background(), 1)
	assert.Error(t, err)
}
