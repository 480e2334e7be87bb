package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/epa-eval-api/internal/service"
	appErrors "github.com/noah-isme/epa-eval-api/pkg/errors"
	"github.com/noah-isme/epa-eval-api/pkg/response"
)

// SupervisorHandler serves the evaluation workflow: roster, per-student
// pending/evaluated split, submissions, per-EPA overview, and notes.
type SupervisorHandler struct {
	students    *service.StudentService
	evaluations *service.EvaluationService
}

// NewSupervisorHandler creates the handler.
func NewSupervisorHandler(students *service.StudentService, evaluations *service.EvaluationService) *SupervisorHandler {
	return &SupervisorHandler{students: students, evaluations: evaluations}
}

func studentIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return 0, false
	}
	return id, true
}

// Students godoc
// @Summary List assigned students
// @Description Roster of students assigned to the authenticated supervisor
// @Tags Supervisor
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /supervisor/students [get]
func (h *SupervisorHandler) Students(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	students, err := h.students.Roster(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// StudentEvaluations godoc
// @Summary Pending and evaluated behaviors
// @Description Splits every behavior for the student into pending and evaluated
// @Tags Supervisor
// @Produce json
// @Param studentId path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /supervisor/students/{studentId}/evaluations [get]
func (h *SupervisorHandler) StudentEvaluations(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID, ok := studentIDParam(c)
	if !ok {
		return
	}
	if _, err := h.students.Authorize(c.Request.Context(), claims.UserID, studentID); err != nil {
		response.Error(c, err)
		return
	}
	split, err := h.evaluations.StudentEvaluations(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, split, nil)
}

// Submit godoc
// @Summary Submit an evaluation
// @Description Records or overwrites the evaluation for one (student, behavior) pair
// @Tags Supervisor
// @Accept json
// @Produce json
// @Param payload body service.SubmitEvaluationRequest true "Evaluation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /supervisor/evaluations [post]
func (h *SupervisorHandler) Submit(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	eval, err := h.evaluations.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eval, nil)
}

// Overview godoc
// @Summary Per-Core-EPA progress overview
// @Description Rollup per Core EPA including untouched EPAs and average ratings
// @Tags Supervisor
// @Produce json
// @Param studentId path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /supervisor/students/{studentId}/overview [get]
func (h *SupervisorHandler) Overview(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID, ok := studentIDParam(c)
	if !ok {
		return
	}
	if _, err := h.students.Authorize(c.Request.Context(), claims.UserID, studentID); err != nil {
		response.Error(c, err)
		return
	}
	summaries, err := h.evaluations.SupervisorOverview(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// AddNote godoc
// @Summary Add a note
// @Description Records a free-text annotation about a student
// @Tags Supervisor
// @Accept json
// @Produce json
// @Param payload body service.CreateNoteRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /supervisor/notes [post]
func (h *SupervisorHandler) AddNote(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}
	note, err := h.students.AddNote(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// Notes godoc
// @Summary List notes
// @Description Notes about a student, newest first
// @Tags Supervisor
// @Produce json
// @Param studentId path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /supervisor/students/{studentId}/notes [get]
func (h *SupervisorHandler) Notes(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID, ok := studentIDParam(c)
	if !ok {
		return
	}
	notes, err := h.students.Notes(c.Request.Context(), claims.UserID, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, nil)
}
