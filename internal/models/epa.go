package models

// CoreEpa is the root of the four-level competency hierarchy.
type CoreEpa struct {
	ID     int64   `db:"id" json:"id"`
	Name   string  `db:"name" json:"name"`
	Weight float64 `db:"weight" json:"weight"`
}

// SmallerEpa is a sub-competency within a Core EPA.
type SmallerEpa struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Weight    float64 `db:"weight" json:"weight"`
	CoreEpaID int64   `db:"core_epa_id" json:"coreEpaId"`
}

// Activity is a concrete task grouping within a Smaller EPA.
type Activity struct {
	ID           int64   `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	Weight       float64 `db:"weight" json:"weight"`
	SmallerEpaID int64   `db:"smaller_epa_id" json:"smallerEpaId"`
}

// Behavior is the atomic observable unit that gets evaluated.
type Behavior struct {
	ID          int64  `db:"id" json:"id"`
	Description string `db:"description" json:"description"`
	ActivityID  int64  `db:"activity_id" json:"activityId"`
}

// Hierarchy is a consistent snapshot of the competency tree skeleton.
// Behaviors are carried by BehaviorFact rows instead; groups listed here may
// legitimately have zero leaves and still must appear in score output.
type Hierarchy struct {
	CoreEpas    []CoreEpa
	SmallerEpas []SmallerEpa
	Activities  []Activity
}
