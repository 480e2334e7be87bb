package models

import "time"

// Evaluation is a supervisor's judgment for one student on one behavior.
// The (StudentID, BehaviorID) pair is the identity; resubmissions overwrite.
type Evaluation struct {
	StudentID      int64     `db:"student_id" json:"studentId"`
	BehaviorID     int64     `db:"behavior_id" json:"behaviorId"`
	IsMet          bool      `db:"is_met" json:"isMet"`
	Rating         *int      `db:"rating" json:"rating,omitempty"`
	Comments       *string   `db:"comments" json:"comments,omitempty"`
	EvaluationDate time.Time `db:"evaluation_date" json:"evaluationDate"`
}

// EvaluationFact is the recorded judgment attached to a BehaviorFact.
type EvaluationFact struct {
	IsMet          bool
	Rating         *int
	Comments       *string
	EvaluationDate time.Time
}

// BehaviorFact is one behavior leaf with its full ancestor chain and, when
// the student has been evaluated on it, the evaluation facts. It is the raw
// input of the aggregation pipeline; Evaluation is nil for pending leaves.
type BehaviorFact struct {
	BehaviorID     int64
	Description    string
	ActivityID     int64
	ActivityName   string
	SmallerEpaID   int64
	SmallerEpaName string
	CoreEpaID      int64
	CoreEpaName    string
	Evaluation     *EvaluationFact
}
