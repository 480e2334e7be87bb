package service

import (
	"sort"

	"github.com/noah-isme/epa-eval-api/internal/models"
)

const analysisRankSize = 3

// AnalysisService ranks Smaller EPA aggregates into strengths and
// weaknesses. It is a pure computation over an already-built breakdown.
type AnalysisService struct{}

// NewAnalysisService constructs an analysis service.
func NewAnalysisService() *AnalysisService {
	return &AnalysisService{}
}

// Analyze returns the top three Smaller EPAs by percentage score as
// strengths and the bottom three as weaknesses, weakest first. Ties break on
// ascending id. With six or fewer Smaller EPAs the lists overlap and the
// Overlap flag is set.
func (s *AnalysisService) Analyze(smallerEpas []models.SmallerEpaScore) models.Analysis {
	descending := make([]models.SmallerEpaScore, len(smallerEpas))
	copy(descending, smallerEpas)
	sort.SliceStable(descending, func(i, j int) bool {
		if descending[i].PercentageScore != descending[j].PercentageScore {
			return descending[i].PercentageScore > descending[j].PercentageScore
		}
		return descending[i].ID < descending[j].ID
	})

	ascending := make([]models.SmallerEpaScore, len(smallerEpas))
	copy(ascending, smallerEpas)
	sort.SliceStable(ascending, func(i, j int) bool {
		if ascending[i].PercentageScore != ascending[j].PercentageScore {
			return ascending[i].PercentageScore < ascending[j].PercentageScore
		}
		return ascending[i].ID < ascending[j].ID
	})

	analysis := models.Analysis{
		Strengths:  rankSlice(descending),
		Weaknesses: rankSlice(ascending),
	}

	seen := make(map[int64]struct{}, len(analysis.Strengths))
	for _, epa := range analysis.Strengths {
		seen[epa.ID] = struct{}{}
	}
	for _, epa := range analysis.Weaknesses {
		if _, ok := seen[epa.ID]; ok {
			analysis.Overlap = true
			break
		}
	}
	return analysis
}

func rankSlice(ranked []models.SmallerEpaScore) []models.SmallerEpaScore {
	n := analysisRankSize
	if len(ranked) < n {
		n = len(ranked)
	}
	out := make([]models.SmallerEpaScore, n)
	copy(out, ranked[:n])
	return out
}
