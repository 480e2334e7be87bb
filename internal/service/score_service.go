package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/epa-eval-api/internal/models"
	appErrors "github.com/noah-isme/epa-eval-api/pkg/errors"
)

// EpaReader describes the persistence layer required by the aggregation
// pipeline: a hierarchy snapshot and per-student behavior facts.
type EpaReader interface {
	Hierarchy(ctx context.Context) (*models.Hierarchy, error)
	BehaviorFacts(ctx context.Context, studentID int64) ([]models.BehaviorFact, error)
}

// ScoreService rolls raw evaluation facts up into percentage-met scores at
// each of the four hierarchy levels. The pipeline has explicit stages: fetch
// (repository), fold (countBehaviors), percentage (half-up rounding), and
// assembly into the leveled output slices.
type ScoreService struct {
	repo     EpaReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewScoreService constructs a score service.
func NewScoreService(repo EpaReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ScoreService{repo: repo, cache: cache, metrics: metrics, logger: logger, cacheTTL: cacheTTL}
}

// Results returns the four-level score breakdown for a student. The boolean
// reports whether the payload came from cache. An unknown student simply has
// no evaluations: every group is present with zero met counts.
func (s *ScoreService) Results(ctx context.Context, studentID int64) (*models.ScoreBreakdown, bool, error) {
	cacheKey := scoreCacheKey(studentID)
	if s.cache != nil {
		var cached models.ScoreBreakdown
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get score cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	hierarchy, err := s.repo.Hierarchy(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load competency hierarchy")
	}
	facts, err := s.repo.BehaviorFacts(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load behavior facts")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("score_breakdown", time.Since(start))
	}

	breakdown := buildBreakdown(hierarchy, facts)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, breakdown, s.cacheTTL); err != nil {
			s.logger.Warn("cache score breakdown", zap.Int64("student_id", studentID), zap.Error(err))
		}
	}
	return breakdown, false, nil
}

// InvalidateStudent drops the cached breakdown after an evaluation write.
func (s *ScoreService) InvalidateStudent(ctx context.Context, studentID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, scoreCacheKey(studentID)); err != nil {
		s.logger.Warn("invalidate score cache", zap.Int64("student_id", studentID), zap.Error(err))
	}
}

func scoreCacheKey(studentID int64) string {
	return fmt.Sprintf("epa:scores:%d", studentID)
}

// percentage applies half-up rounding to met/total. A zero total resolves to
// 0 rather than a division error.
func percentage(met, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(met)/float64(total)*100 + 0.5))
}

type behaviorCounts struct {
	total int
	met   int
}

func (c *behaviorCounts) add(met bool) {
	c.total++
	if met {
		c.met++
	}
}

// buildBreakdown folds behavior facts onto the hierarchy skeleton. Counts
// are accumulated once per leaf and reported independently at each level, so
// a Core EPA total always equals the sum of its activities' totals.
func buildBreakdown(h *models.Hierarchy, facts []models.BehaviorFact) *models.ScoreBreakdown {
	activityCounts := make(map[int64]*behaviorCounts)
	smallerCounts := make(map[int64]*behaviorCounts)
	coreCounts := make(map[int64]*behaviorCounts)
	count := func(m map[int64]*behaviorCounts, id int64, met bool) {
		c, ok := m[id]
		if !ok {
			c = &behaviorCounts{}
			m[id] = c
		}
		c.add(met)
	}

	for _, fact := range facts {
		met := fact.Evaluation != nil && fact.Evaluation.IsMet
		count(activityCounts, fact.ActivityID, met)
		count(smallerCounts, fact.SmallerEpaID, met)
		count(coreCounts, fact.CoreEpaID, met)
	}

	coreByID := make(map[int64]models.CoreEpa, len(h.CoreEpas))
	for _, core := range h.CoreEpas {
		coreByID[core.ID] = core
	}
	smallerByID := make(map[int64]models.SmallerEpa, len(h.SmallerEpas))
	for _, smaller := range h.SmallerEpas {
		smallerByID[smaller.ID] = smaller
	}

	breakdown := &models.ScoreBreakdown{
		CoreEpas:    make([]models.CoreEpaScore, 0, len(h.CoreEpas)),
		SmallerEpas: make([]models.SmallerEpaScore, 0, len(h.SmallerEpas)),
		Activities:  make([]models.ActivityScore, 0, len(h.Activities)),
	}

	for _, core := range h.CoreEpas {
		counts := lookupCounts(coreCounts, core.ID)
		breakdown.CoreEpas = append(breakdown.CoreEpas, models.CoreEpaScore{
			ID:              core.ID,
			Name:            core.Name,
			Weight:          core.Weight,
			PercentageScore: percentage(counts.met, counts.total),
			TotalBehaviors:  counts.total,
			MetBehaviors:    counts.met,
		})
	}
	sort.SliceStable(breakdown.CoreEpas, func(i, j int) bool {
		return breakdown.CoreEpas[i].ID < breakdown.CoreEpas[j].ID
	})

	for _, smaller := range h.SmallerEpas {
		counts := lookupCounts(smallerCounts, smaller.ID)
		core := coreByID[smaller.CoreEpaID]
		breakdown.SmallerEpas = append(breakdown.SmallerEpas, models.SmallerEpaScore{
			ID:              smaller.ID,
			Name:            smaller.Name,
			Weight:          smaller.Weight,
			CoreEpaID:       smaller.CoreEpaID,
			CoreEpaName:     core.Name,
			PercentageScore: percentage(counts.met, counts.total),
			TotalBehaviors:  counts.total,
			MetBehaviors:    counts.met,
		})
	}
	sort.SliceStable(breakdown.SmallerEpas, func(i, j int) bool {
		a, b := breakdown.SmallerEpas[i], breakdown.SmallerEpas[j]
		if a.CoreEpaID != b.CoreEpaID {
			return a.CoreEpaID < b.CoreEpaID
		}
		return a.ID < b.ID
	})

	for _, activity := range h.Activities {
		counts := lookupCounts(activityCounts, activity.ID)
		smaller := smallerByID[activity.SmallerEpaID]
		core := coreByID[smaller.CoreEpaID]
		breakdown.Activities = append(breakdown.Activities, models.ActivityScore{
			ID:              activity.ID,
			Name:            activity.Name,
			Weight:          activity.Weight,
			SmallerEpaID:    activity.SmallerEpaID,
			SmallerEpaName:  smaller.Name,
			CoreEpaID:       smaller.CoreEpaID,
			CoreEpaName:     core.Name,
			PercentageScore: percentage(counts.met, counts.total),
			TotalBehaviors:  counts.total,
			MetBehaviors:    counts.met,
		})
	}
	sort.SliceStable(breakdown.Activities, func(i, j int) bool {
		a, b := breakdown.Activities[i], breakdown.Activities[j]
		if a.CoreEpaID != b.CoreEpaID {
			return a.CoreEpaID < b.CoreEpaID
		}
		if a.SmallerEpaID != b.SmallerEpaID {
			return a.SmallerEpaID < b.SmallerEpaID
		}
		return a.ID < b.ID
	})

	breakdown.Behaviors = evaluatedRecords(facts)

	return breakdown
}

// evaluatedRecords projects facts carrying an evaluation into the
// behavior-level output list. Pending leaves are excluded; they are served by
// the pending/evaluated split instead.
func evaluatedRecords(facts []models.BehaviorFact) []models.BehaviorRecord {
	records := make([]models.BehaviorRecord, 0, len(facts))
	for _, fact := range facts {
		if fact.Evaluation == nil {
			continue
		}
		records = append(records, models.BehaviorRecord{
			ID:             fact.BehaviorID,
			Description:    fact.Description,
			ActivityID:     fact.ActivityID,
			ActivityName:   fact.ActivityName,
			SmallerEpaID:   fact.SmallerEpaID,
			SmallerEpaName: fact.SmallerEpaName,
			CoreEpaID:      fact.CoreEpaID,
			CoreEpaName:    fact.CoreEpaName,
			IsMet:          fact.Evaluation.IsMet,
			EvaluationDate: fact.Evaluation.EvaluationDate,
			Rating:         fact.Evaluation.Rating,
			Comments:       fact.Evaluation.Comments,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.CoreEpaID != b.CoreEpaID {
			return a.CoreEpaID < b.CoreEpaID
		}
		if a.SmallerEpaID != b.SmallerEpaID {
			return a.SmallerEpaID < b.SmallerEpaID
		}
		if a.ActivityID != b.ActivityID {
			return a.ActivityID < b.ActivityID
		}
		return a.ID < b.ID
	})
	return records
}

func lookupCounts(m map[int64]*behaviorCounts, id int64) behaviorCounts {
	if c, ok := m[id]; ok {
		return *c
	}
	return behaviorCounts{}
}
