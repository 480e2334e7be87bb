package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/epa-eval-api/internal/models"
	appErrors "github.com/noah-isme/epa-eval-api/pkg/errors"
)

// ProgressService computes per-Core-EPA completion over time, bucketed by a
// caller-selected granularity. Only evaluated behaviors contribute; a bucket
// with no evaluations for a Core EPA simply has no point.
type ProgressService struct {
	repo   EpaReader
	logger *zap.Logger
}

// NewProgressService constructs a progress service.
func NewProgressService(repo EpaReader, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{repo: repo, logger: logger}
}

// Progress returns the (bucket, Core EPA) series for a student. An invalid
// granularity token is rejected before any repository work.
func (s *ProgressService) Progress(ctx context.Context, studentID int64, granularity models.Granularity) ([]models.ProgressPoint, error) {
	if !granularity.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "granularity must be one of day, week, month")
	}
	facts, err := s.repo.BehaviorFacts(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load behavior facts")
	}
	return bucketProgress(facts, granularity), nil
}

// truncateToBucket normalizes an evaluation timestamp to its bucket start in
// UTC. Weeks are ISO weeks, starting Monday 00:00.
func truncateToBucket(t time.Time, granularity models.Granularity) time.Time {
	t = t.UTC()
	switch granularity {
	case models.GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func bucketProgress(facts []models.BehaviorFact, granularity models.Granularity) []models.ProgressPoint {
	type bucketKey struct {
		bucket int64
		coreID int64
	}
	acc := make(map[bucketKey]*models.ProgressPoint)
	for _, fact := range facts {
		if fact.Evaluation == nil {
			continue
		}
		bucket := truncateToBucket(fact.Evaluation.EvaluationDate, granularity)
		key := bucketKey{bucket: bucket.Unix(), coreID: fact.CoreEpaID}
		point, ok := acc[key]
		if !ok {
			point = &models.ProgressPoint{
				TimeBucket:  bucket,
				CoreEpaID:   fact.CoreEpaID,
				CoreEpaName: fact.CoreEpaName,
			}
			acc[key] = point
		}
		point.TotalEvaluated++
		if fact.Evaluation.IsMet {
			point.TotalMet++
		}
	}

	points := make([]models.ProgressPoint, 0, len(acc))
	for _, point := range acc {
		point.PercentageScore = percentage(point.TotalMet, point.TotalEvaluated)
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].TimeBucket.Equal(points[j].TimeBucket) {
			return points[i].TimeBucket.Before(points[j].TimeBucket)
		}
		return points[i].CoreEpaID < points[j].CoreEpaID
	})
	return points
}
