package dto

import "github.com/noah-isme/epa-eval-api/internal/models"

// SimpleResult is one row of the compact per-Core-EPA result list.
type SimpleResult struct {
	CoreEpaID       int64  `json:"coreEpaId"`
	CoreEpaName     string `json:"coreEpaName"`
	PercentageScore int    `json:"percentageScore"`
}

// DetailedResultsResponse is the full student dashboard payload: the
// four-level breakdown plus the weekly progress series and the
// strength/weakness analysis.
type DetailedResultsResponse struct {
	models.ScoreBreakdown
	ProgressOverTime []models.ProgressPoint `json:"progressOverTime"`
	Analysis         models.Analysis        `json:"analysis"`
}
