package models

import "time"

// CoreEpaScore is the percentage-met rollup at the Core EPA level.
type CoreEpaScore struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Weight          float64 `json:"weight"`
	PercentageScore int     `json:"percentageScore"`
	TotalBehaviors  int     `json:"totalBehaviors"`
	MetBehaviors    int     `json:"metBehaviors"`
}

// SmallerEpaScore is the rollup at the Smaller EPA level.
type SmallerEpaScore struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Weight          float64 `json:"weight"`
	CoreEpaID       int64   `json:"coreEpaId"`
	CoreEpaName     string  `json:"coreEpaName"`
	PercentageScore int     `json:"percentageScore"`
	TotalBehaviors  int     `json:"totalBehaviors"`
	MetBehaviors    int     `json:"metBehaviors"`
}

// ActivityScore is the rollup at the Activity level.
type ActivityScore struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Weight          float64 `json:"weight"`
	SmallerEpaID    int64   `json:"smallerEpaId"`
	SmallerEpaName  string  `json:"smallerEpaName"`
	CoreEpaID       int64   `json:"coreEpaId"`
	CoreEpaName     string  `json:"coreEpaName"`
	PercentageScore int     `json:"percentageScore"`
	TotalBehaviors  int     `json:"totalBehaviors"`
	MetBehaviors    int     `json:"metBehaviors"`
}

// BehaviorRecord is an evaluated behavior leaf with its ancestor-name chain.
type BehaviorRecord struct {
	ID             int64     `json:"id"`
	Description    string    `json:"description"`
	ActivityID     int64     `json:"activityId"`
	ActivityName   string    `json:"activityName"`
	SmallerEpaID   int64     `json:"smallerEpaId"`
	SmallerEpaName string    `json:"smallerEpaName"`
	CoreEpaID      int64     `json:"coreEpaId"`
	CoreEpaName    string    `json:"coreEpaName"`
	IsMet          bool      `json:"isMet"`
	EvaluationDate time.Time `json:"evaluationDate"`
	Rating         *int      `json:"rating"`
	Comments       *string   `json:"comments"`
}

// ScoreBreakdown carries the four parallel per-level score collections for
// one student. Each node appears exactly once in its level slice; the
// Behaviors slice holds evaluated leaves only.
type ScoreBreakdown struct {
	CoreEpas    []CoreEpaScore    `json:"coreEpas"`
	SmallerEpas []SmallerEpaScore `json:"smallerEpas"`
	Activities  []ActivityScore   `json:"activities"`
	Behaviors   []BehaviorRecord  `json:"behaviors"`
}

// Granularity selects the temporal-analytics bucket width.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Valid reports whether the granularity token is one of day|week|month.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return true
	}
	return false
}

// ProgressPoint is one (time bucket, Core EPA) completion measurement.
type ProgressPoint struct {
	TimeBucket      time.Time `json:"timeBucket"`
	CoreEpaID       int64     `json:"coreEpaId"`
	CoreEpaName     string    `json:"coreEpaName"`
	PercentageScore int       `json:"percentageScore"`
	TotalEvaluated  int       `json:"totalEvaluated"`
	TotalMet        int       `json:"totalMet"`
}

// Analysis surfaces the strongest and weakest Smaller EPAs. Overlap is set
// when the same Smaller EPA appears in both lists, which happens whenever
// six or fewer Smaller EPAs exist.
type Analysis struct {
	Strengths  []SmallerEpaScore `json:"strengths"`
	Weaknesses []SmallerEpaScore `json:"weaknesses"`
	Overlap    bool              `json:"overlap,omitempty"`
}

// ActivityRecommendation is a templated guidance entry for a low-completion
// activity. CompletionRate is the rounded percentage used for display.
type ActivityRecommendation struct {
	ID             int64  `json:"id"`
	ActivityName   string `json:"activityName"`
	SmallerEpaName string `json:"smallerEpaName"`
	CoreEpaName    string `json:"coreEpaName"`
	CompletionRate int    `json:"completionRate"`
	Recommendation string `json:"recommendation"`
}

// BehaviorImprovement is a behavior-level improvement tip.
type BehaviorImprovement struct {
	ID                 int64   `json:"id"`
	Description        string  `json:"description"`
	ActivityName       string  `json:"activityName"`
	SmallerEpaName     string  `json:"smallerEpaName"`
	CoreEpaName        string  `json:"coreEpaName"`
	IsMet              bool    `json:"isMet"`
	Rating             *int    `json:"rating"`
	SupervisorComments *string `json:"supervisorComments"`
	ImprovementTips    string  `json:"improvementTips"`
}

// Recommendations bundles activity and behavior guidance.
type Recommendations struct {
	WeakestActivities  []ActivityRecommendation `json:"weakestActivities"`
	BehaviorsToImprove []BehaviorImprovement    `json:"behaviorsToImprove"`
}

// BadgeLevel identifies the badge tier.
type BadgeLevel string

const (
	BadgeGold   BadgeLevel = "gold"
	BadgeSilver BadgeLevel = "silver"
	BadgeBronze BadgeLevel = "bronze"
)

// Badge is a single awarded achievement.
type Badge struct {
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Level       BadgeLevel `json:"level"`
}

// BadgeStats counts awarded badges per tier.
type BadgeStats struct {
	TotalBadges  int `json:"totalBadges"`
	GoldBadges   int `json:"goldBadges"`
	SilverBadges int `json:"silverBadges"`
	BronzeBadges int `json:"bronzeBadges"`
}

// Achievements is the full badge payload for a student.
type Achievements struct {
	Badges []Badge    `json:"badges"`
	Stats  BadgeStats `json:"stats"`
}
