package models

import "time"

// Student links a user account to its supervisor.
type Student struct {
	ID           int64  `db:"id" json:"id"`
	UserID       string `db:"user_id" json:"userId"`
	SupervisorID string `db:"supervisor_id" json:"supervisorId"`
	FullName     string `db:"full_name" json:"fullName"`
}

// StudentNote is a free-text supervisor annotation about a student.
type StudentNote struct {
	ID           string    `db:"id" json:"id"`
	StudentID    int64     `db:"student_id" json:"studentId"`
	SupervisorID string    `db:"supervisor_id" json:"supervisorId"`
	Note         string    `db:"note" json:"note"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// PendingBehavior is a behavior the student has not been evaluated on yet,
// carrying the full ancestor-name chain for display.
type PendingBehavior struct {
	ID             int64  `json:"id"`
	Description    string `json:"description"`
	ActivityID     int64  `json:"activityId"`
	ActivityName   string `json:"activityName"`
	SmallerEpaID   int64  `json:"smallerEpaId"`
	SmallerEpaName string `json:"smallerEpaName"`
	CoreEpaID      int64  `json:"coreEpaId"`
	CoreEpaName    string `json:"coreEpaName"`
}

// StudentEvaluations partitions all behaviors for a student into those still
// awaiting evaluation and those already recorded.
type StudentEvaluations struct {
	Pending   []PendingBehavior `json:"pending"`
	Evaluated []BehaviorRecord  `json:"evaluated"`
}

// CoreEpaProgressSummary is the supervisor-facing per-CoreEpa rollup. Every
// Core EPA appears even with zero evaluations; AverageRating is nil when the
// student has no rated evaluations under the EPA.
type CoreEpaProgressSummary struct {
	CoreEpaID          int64    `json:"coreEpaId"`
	CoreEpaName        string   `json:"coreEpaName"`
	TotalBehaviors     int      `json:"totalBehaviors"`
	EvaluatedBehaviors int      `json:"evaluatedBehaviors"`
	MetBehaviors       int      `json:"metBehaviors"`
	PercentageScore    int      `json:"percentageScore"`
	AverageRating      *float64 `json:"averageRating,omitempty"`
}
