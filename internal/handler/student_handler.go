package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/epa-eval-api/internal/dto"
	"github.com/noah-isme/epa-eval-api/internal/models"
	"github.com/noah-isme/epa-eval-api/internal/service"
	appErrors "github.com/noah-isme/epa-eval-api/pkg/errors"
	"github.com/noah-isme/epa-eval-api/pkg/response"
)

// StudentHandler serves the student-facing dashboard surface. Every route
// resolves the student profile from the authenticated user, so a student can
// only ever read their own data.
type StudentHandler struct {
	students        *service.StudentService
	scores          *service.ScoreService
	progress        *service.ProgressService
	analysis        *service.AnalysisService
	recommendations *service.RecommendationService
	achievements    *service.AchievementService
}

// StudentHandlerParams wires StudentHandler dependencies.
type StudentHandlerParams struct {
	Students        *service.StudentService
	Scores          *service.ScoreService
	Progress        *service.ProgressService
	Analysis        *service.AnalysisService
	Recommendations *service.RecommendationService
	Achievements    *service.AchievementService
}

// NewStudentHandler creates the handler.
func NewStudentHandler(params StudentHandlerParams) *StudentHandler {
	return &StudentHandler{
		students:        params.Students,
		scores:          params.Scores,
		progress:        params.Progress,
		analysis:        params.Analysis,
		recommendations: params.Recommendations,
		achievements:    params.Achievements,
	}
}

func (h *StudentHandler) resolveStudent(c *gin.Context) (*models.Student, bool) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	student, err := h.students.ResolveByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return student, true
}

// Results godoc
// @Summary Simple per-Core-EPA results
// @Description Compact percentage score per Core EPA for the current student
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /student/results [get]
func (h *StudentHandler) Results(c *gin.Context) {
	student, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	breakdown, cached, err := h.scores.Results(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	results := make([]dto.SimpleResult, 0, len(breakdown.CoreEpas))
	for _, core := range breakdown.CoreEpas {
		results = append(results, dto.SimpleResult{
			CoreEpaID:       core.ID,
			CoreEpaName:     core.Name,
			PercentageScore: core.PercentageScore,
		})
	}
	response.JSON(c, http.StatusOK, results, nil, map[string]interface{}{"cached": cached})
}

// DetailedResults godoc
// @Summary Detailed dashboard payload
// @Description Four-level breakdown, weekly progress series, and strength/weakness analysis
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /student/results/detailed [get]
func (h *StudentHandler) DetailedResults(c *gin.Context) {
	student, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	breakdown, _, err := h.scores.Results(ctx, student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	progress, err := h.progress.Progress(ctx, student.ID, models.GranularityWeek)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := dto.DetailedResultsResponse{
		ScoreBreakdown:   *breakdown,
		ProgressOverTime: progress,
		Analysis:         h.analysis.Analyze(breakdown.SmallerEpas),
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// Progress godoc
// @Summary Progress over time
// @Description Completion percentage per Core EPA bucketed by day, week, or month
// @Tags Student
// @Produce json
// @Param granularity query string false "day|week|month" default(week)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /student/progress [get]
func (h *StudentHandler) Progress(c *gin.Context) {
	student, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	granularity := models.Granularity(c.DefaultQuery("granularity", string(models.GranularityWeek)))
	points, err := h.progress.Progress(c.Request.Context(), student.ID, granularity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// Recommendations godoc
// @Summary Study recommendations
// @Description Weakest activities and behaviors to improve, with guidance
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /student/recommendations [get]
func (h *StudentHandler) Recommendations(c *gin.Context) {
	student, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	recs, err := h.recommendations.Recommendations(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recs, nil)
}

// Achievements godoc
// @Summary Achievement badges
// @Description Gold, silver, and bronze badges with per-tier counts
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /student/achievements [get]
func (h *StudentHandler) Achievements(c *gin.Context) {
	student, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	achievements, err := h.achievements.Achievements(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, achievements, nil)
}
