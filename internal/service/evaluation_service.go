package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/epa-eval-api/internal/models"
	appErrors "github.com/noah-isme/epa-eval-api/pkg/errors"
)

type evaluationRepository interface {
	Upsert(ctx context.Context, eval *models.Evaluation) error
	BehaviorExists(ctx context.Context, behaviorID int64) (bool, error)
}

type evaluationStudentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

type evaluationAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type scoreInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID int64)
}

// SubmitEvaluationRequest is the supervisor payload for recording one
// behavior judgment. Rating is optional; when present it must fall in 1..5.
type SubmitEvaluationRequest struct {
	StudentID  int64   `json:"studentId" validate:"required"`
	BehaviorID int64   `json:"behaviorId" validate:"required"`
	IsMet      bool    `json:"isMet"`
	Rating     *int    `json:"rating,omitempty"`
	Comments   *string `json:"comments,omitempty"`
	IP         string  `json:"-"`
	UserAgent  string  `json:"-"`
}

// EvaluationService records supervisor judgments and serves the
// pending/evaluated split plus the supervisor-facing per-EPA overview.
type EvaluationService struct {
	evals     evaluationRepository
	epas      EpaReader
	students  evaluationStudentRepository
	audits    evaluationAuditRepository
	scores    scoreInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// EvaluationServiceParams wires EvaluationService dependencies.
type EvaluationServiceParams struct {
	Evaluations evaluationRepository
	Epas        EpaReader
	Students    evaluationStudentRepository
	Audits      evaluationAuditRepository
	Scores      scoreInvalidator
	Validator   *validator.Validate
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewEvaluationService constructs an evaluation service.
func NewEvaluationService(params EvaluationServiceParams) *EvaluationService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &EvaluationService{
		evals:     params.Evaluations,
		epas:      params.Epas,
		students:  params.Students,
		audits:    params.Audits,
		scores:    params.Scores,
		validator: params.Validator,
		logger:    params.Logger,
		now:       params.Now,
	}
}

// Submit records (or overwrites) the evaluation for one (student, behavior)
// pair. The write is a single atomic upsert: resubmission replaces the prior
// judgment without leaving duplicates. The supervisor id comes from the
// authenticated caller, never the payload.
func (s *EvaluationService) Submit(ctx context.Context, supervisorID string, req SubmitEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, appErrors.Clone(appErrors.ErrInvalidRating, fmt.Sprintf("rating %d outside the 1-5 scale", *req.Rating))
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load student")
	}
	if student.SupervisorID != supervisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to this supervisor")
	}

	exists, err := s.evals.BehaviorExists(ctx, req.BehaviorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to check behavior")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "behavior not found")
	}

	eval := &models.Evaluation{
		StudentID:      req.StudentID,
		BehaviorID:     req.BehaviorID,
		IsMet:          req.IsMet,
		Rating:         req.Rating,
		Comments:       req.Comments,
		EvaluationDate: s.now().UTC(),
	}
	if err := s.evals.Upsert(ctx, eval); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to persist evaluation")
	}

	if s.scores != nil {
		s.scores.InvalidateStudent(ctx, req.StudentID)
	}

	if s.audits != nil {
		resourceID := fmt.Sprintf("%d:%d", req.StudentID, req.BehaviorID)
		payload, _ := json.Marshal(eval)
		if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &supervisorID,
			Action:     models.AuditActionEvaluationSubmit,
			Resource:   "evaluation",
			ResourceID: &resourceID,
			NewValues:  payload,
			IPAddress:  req.IP,
			UserAgent:  req.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record evaluation audit log", zap.Error(err))
		}
	}

	return eval, nil
}

// StudentEvaluations splits every behavior in the hierarchy into pending and
// evaluated for one student.
func (s *EvaluationService) StudentEvaluations(ctx context.Context, studentID int64) (*models.StudentEvaluations, error) {
	facts, err := s.epas.BehaviorFacts(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load behavior facts")
	}

	split := &models.StudentEvaluations{
		Pending:   make([]models.PendingBehavior, 0, len(facts)),
		Evaluated: evaluatedRecords(facts),
	}
	for _, fact := range facts {
		if fact.Evaluation != nil {
			continue
		}
		split.Pending = append(split.Pending, models.PendingBehavior{
			ID:             fact.BehaviorID,
			Description:    fact.Description,
			ActivityID:     fact.ActivityID,
			ActivityName:   fact.ActivityName,
			SmallerEpaID:   fact.SmallerEpaID,
			SmallerEpaName: fact.SmallerEpaName,
			CoreEpaID:      fact.CoreEpaID,
			CoreEpaName:    fact.CoreEpaName,
		})
	}
	return split, nil
}

// SupervisorOverview folds facts into one progress summary per Core EPA,
// including EPAs the student has not touched yet. AverageRating covers rated
// evaluations only.
func (s *EvaluationService) SupervisorOverview(ctx context.Context, studentID int64) ([]models.CoreEpaProgressSummary, error) {
	hierarchy, err := s.epas.Hierarchy(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load competency hierarchy")
	}
	facts, err := s.epas.BehaviorFacts(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load behavior facts")
	}

	type rollup struct {
		total      int
		evaluated  int
		met        int
		ratingSum  int
		ratedCount int
	}
	perCore := make(map[int64]*rollup, len(hierarchy.CoreEpas))
	for _, core := range hierarchy.CoreEpas {
		perCore[core.ID] = &rollup{}
	}
	for _, fact := range facts {
		r, ok := perCore[fact.CoreEpaID]
		if !ok {
			r = &rollup{}
			perCore[fact.CoreEpaID] = r
		}
		r.total++
		if fact.Evaluation == nil {
			continue
		}
		r.evaluated++
		if fact.Evaluation.IsMet {
			r.met++
		}
		if fact.Evaluation.Rating != nil {
			r.ratingSum += *fact.Evaluation.Rating
			r.ratedCount++
		}
	}

	summaries := make([]models.CoreEpaProgressSummary, 0, len(hierarchy.CoreEpas))
	for _, core := range hierarchy.CoreEpas {
		r := perCore[core.ID]
		summary := models.CoreEpaProgressSummary{
			CoreEpaID:          core.ID,
			CoreEpaName:        core.Name,
			TotalBehaviors:     r.total,
			EvaluatedBehaviors: r.evaluated,
			MetBehaviors:       r.met,
			PercentageScore:    percentage(r.met, r.total),
		}
		if r.ratedCount > 0 {
			avg := float64(r.ratingSum) / float64(r.ratedCount)
			summary.AverageRating = &avg
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
