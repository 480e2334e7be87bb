package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

const (
	badgeTypeCoreEpaMastery    = "core_epa_mastery"
	badgeTypeSmallerEpaMastery = "smaller_epa_mastery"
	badgeTypeRecentImprovement = "recent_improvement"
)

// AchievementServiceParams wires dependencies and award thresholds.
type AchievementServiceParams struct {
	Scores       ScoreProvider
	Logger       *zap.Logger
	Now          func() time.Time
	MasteryRatio float64
	RecentRatio  float64
	RecentWindow time.Duration
}

// AchievementService derives gold, silver, and bronze badges from a
// student's score breakdown.
type AchievementService struct {
	scores       ScoreProvider
	logger       *zap.Logger
	now          func() time.Time
	masteryRatio float64
	recentRatio  float64
	recentWindow time.Duration
}

// NewAchievementService constructs an achievement service. Zero thresholds
// fall back to the standard 90% mastery and 70% over 30 days.
func NewAchievementService(params AchievementServiceParams) *AchievementService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.MasteryRatio <= 0 {
		params.MasteryRatio = 0.9
	}
	if params.RecentRatio <= 0 {
		params.RecentRatio = 0.7
	}
	if params.RecentWindow <= 0 {
		params.RecentWindow = 30 * 24 * time.Hour
	}
	return &AchievementService{
		scores:       params.Scores,
		logger:       params.Logger,
		now:          params.Now,
		masteryRatio: params.MasteryRatio,
		recentRatio:  params.RecentRatio,
		recentWindow: params.RecentWindow,
	}
}

// Achievements returns all badges the student currently qualifies for, gold
// first, with per-tier counts.
func (s *AchievementService) Achievements(ctx context.Context, studentID int64) (*models.Achievements, error) {
	breakdown, _, err := s.scores.Results(ctx, studentID)
	if err != nil {
		return nil, err
	}

	badges := make([]models.Badge, 0, 8)
	badges = append(badges, s.masteryBadges(breakdown)...)
	badges = append(badges, s.recentBadges(breakdown)...)

	stats := models.BadgeStats{TotalBadges: len(badges)}
	for _, badge := range badges {
		switch badge.Level {
		case models.BadgeGold:
			stats.GoldBadges++
		case models.BadgeSilver:
			stats.SilverBadges++
		case models.BadgeBronze:
			stats.BronzeBadges++
		}
	}
	return &models.Achievements{Badges: badges, Stats: stats}, nil
}

// masteryBadges awards gold for Core EPAs and silver for Smaller EPAs whose
// met ratio reaches the mastery threshold. Groups with no behaviors never
// qualify.
func (s *AchievementService) masteryBadges(breakdown *models.ScoreBreakdown) []models.Badge {
	badges := make([]models.Badge, 0, 4)
	for _, core := range breakdown.CoreEpas {
		if !qualifies(core.MetBehaviors, core.TotalBehaviors, s.masteryRatio) {
			continue
		}
		badges = append(badges, models.Badge{
			Type:        badgeTypeCoreEpaMastery,
			Title:       fmt.Sprintf("%s Mastery", core.Name),
			Description: fmt.Sprintf("Met %d of %d behaviors in %s", core.MetBehaviors, core.TotalBehaviors, core.Name),
			Level:       models.BadgeGold,
		})
	}
	for _, smaller := range breakdown.SmallerEpas {
		if !qualifies(smaller.MetBehaviors, smaller.TotalBehaviors, s.masteryRatio) {
			continue
		}
		badges = append(badges, models.Badge{
			Type:        badgeTypeSmallerEpaMastery,
			Title:       fmt.Sprintf("%s Mastery", smaller.Name),
			Description: fmt.Sprintf("Met %d of %d behaviors in %s under %s", smaller.MetBehaviors, smaller.TotalBehaviors, smaller.Name, smaller.CoreEpaName),
			Level:       models.BadgeSilver,
		})
	}
	return badges
}

// recentBadges awards bronze per Core EPA when evaluations inside the recent
// window exist and their met ratio reaches the recent threshold.
func (s *AchievementService) recentBadges(breakdown *models.ScoreBreakdown) []models.Badge {
	windowStart := s.now().UTC().Add(-s.recentWindow)
	type window struct {
		name      string
		evaluated int
		met       int
	}
	perCore := make(map[int64]*window)
	order := make([]int64, 0, len(breakdown.CoreEpas))
	for _, record := range breakdown.Behaviors {
		if record.EvaluationDate.Before(windowStart) {
			continue
		}
		w, ok := perCore[record.CoreEpaID]
		if !ok {
			w = &window{name: record.CoreEpaName}
			perCore[record.CoreEpaID] = w
			order = append(order, record.CoreEpaID)
		}
		w.evaluated++
		if record.IsMet {
			w.met++
		}
	}

	days := int(s.recentWindow.Hours() / 24)
	badges := make([]models.Badge, 0, len(order))
	for _, coreID := range order {
		w := perCore[coreID]
		if !qualifies(w.met, w.evaluated, s.recentRatio) {
			continue
		}
		badges = append(badges, models.Badge{
			Type:        badgeTypeRecentImprovement,
			Title:       fmt.Sprintf("Recent Progress in %s", w.name),
			Description: fmt.Sprintf("Met %d of %d behaviors evaluated in %s over the last %d days", w.met, w.evaluated, w.name, days),
			Level:       models.BadgeBronze,
		})
	}
	return badges
}

func qualifies(met, total int, ratio float64) bool {
	if total <= 0 {
		return false
	}
	return float64(met)/float64(total) >= ratio
}
