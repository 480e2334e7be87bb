package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

const (
	weakestActivityLimit = 5
	behaviorImproveLimit = 10

	lowCompletionCutoff = 0.3
	midCompletionCutoff = 0.6
	lowRatingCutoff     = 3
)

// ScoreProvider is the breakdown source consumed by the recommendation and
// achievement services.
type ScoreProvider interface {
	Results(ctx context.Context, studentID int64) (*models.ScoreBreakdown, bool, error)
}

// RecommendationService derives tiered study guidance from a student's
// score breakdown: the lowest-completion activities plus individual
// behaviors flagged as unmet or low rated.
type RecommendationService struct {
	scores ScoreProvider
	logger *zap.Logger
}

// NewRecommendationService constructs a recommendation service.
func NewRecommendationService(scores ScoreProvider, logger *zap.Logger) *RecommendationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationService{scores: scores, logger: logger}
}

// Recommendations produces the guidance payload for a student.
func (s *RecommendationService) Recommendations(ctx context.Context, studentID int64) (*models.Recommendations, error) {
	breakdown, _, err := s.scores.Results(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return buildRecommendations(breakdown), nil
}

func buildRecommendations(breakdown *models.ScoreBreakdown) *models.Recommendations {
	return &models.Recommendations{
		WeakestActivities:  weakestActivities(breakdown.Activities),
		BehaviorsToImprove: behaviorsToImprove(breakdown.Behaviors),
	}
}

// weakestActivities ranks activities by raw completion rate ascending and
// templates a recommendation per tier. Activities with no behaviors are
// skipped: there is nothing actionable to recommend.
func weakestActivities(activities []models.ActivityScore) []models.ActivityRecommendation {
	candidates := make([]models.ActivityScore, 0, len(activities))
	for _, activity := range activities {
		if activity.TotalBehaviors > 0 {
			candidates = append(candidates, activity)
		}
	}
	completionRate := func(a models.ActivityScore) float64 {
		return float64(a.MetBehaviors) / float64(a.TotalBehaviors)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := completionRate(candidates[i]), completionRate(candidates[j])
		if ri != rj {
			return ri < rj
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > weakestActivityLimit {
		candidates = candidates[:weakestActivityLimit]
	}

	out := make([]models.ActivityRecommendation, 0, len(candidates))
	for _, activity := range candidates {
		out = append(out, models.ActivityRecommendation{
			ID:             activity.ID,
			ActivityName:   activity.Name,
			SmallerEpaName: activity.SmallerEpaName,
			CoreEpaName:    activity.CoreEpaName,
			CompletionRate: percentage(activity.MetBehaviors, activity.TotalBehaviors),
			Recommendation: activityRecommendation(activity.Name, completionRate(activity)),
		})
	}
	return out
}

func activityRecommendation(name string, rate float64) string {
	switch {
	case rate < lowCompletionCutoff:
		return fmt.Sprintf("Focus on building foundational skills in %s. Schedule dedicated practice sessions with your supervisor.", name)
	case rate < midCompletionCutoff:
		return fmt.Sprintf("Keep practicing %s to raise consistency. Review feedback from previous evaluations before the next attempt.", name)
	default:
		return fmt.Sprintf("You are close to mastering %s. Target the remaining unmet behaviors to complete it.", name)
	}
}

// behaviorsToImprove selects behaviors that were evaluated as unmet, or met
// with a rating below threshold. Unrated met behaviors are not flagged.
// Ordering: unrated entries first, then rating ascending, most recent
// evaluation first within equal ratings.
func behaviorsToImprove(records []models.BehaviorRecord) []models.BehaviorImprovement {
	flagged := make([]models.BehaviorRecord, 0, len(records))
	for _, record := range records {
		if !record.IsMet || (record.Rating != nil && *record.Rating < lowRatingCutoff) {
			flagged = append(flagged, record)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		ri, rj := flagged[i].Rating, flagged[j].Rating
		switch {
		case ri == nil && rj != nil:
			return true
		case ri != nil && rj == nil:
			return false
		case ri != nil && rj != nil && *ri != *rj:
			return *ri < *rj
		}
		return flagged[i].EvaluationDate.After(flagged[j].EvaluationDate)
	})
	if len(flagged) > behaviorImproveLimit {
		flagged = flagged[:behaviorImproveLimit]
	}

	out := make([]models.BehaviorImprovement, 0, len(flagged))
	for _, record := range flagged {
		out = append(out, models.BehaviorImprovement{
			ID:                 record.ID,
			Description:        record.Description,
			ActivityName:       record.ActivityName,
			SmallerEpaName:     record.SmallerEpaName,
			CoreEpaName:        record.CoreEpaName,
			IsMet:              record.IsMet,
			Rating:             record.Rating,
			SupervisorComments: record.Comments,
			ImprovementTips:    behaviorTip(record),
		})
	}
	return out
}

func behaviorTip(record models.BehaviorRecord) string {
	if !record.IsMet {
		return "This behavior has not been demonstrated yet. Ask your supervisor for a focused observation opportunity."
	}
	return "This behavior was met but rated low. Review the supervisor comments and refine your technique before re-evaluation."
}
