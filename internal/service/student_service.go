package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/epa-eval-api/internal/models"
	appErrors "github.com/noah-isme/epa-eval-api/pkg/errors"
)

type studentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	ListBySupervisor(ctx context.Context, supervisorID string) ([]models.Student, error)
}

type noteRepository interface {
	Create(ctx context.Context, note *models.StudentNote) error
	ListByStudent(ctx context.Context, studentID int64) ([]models.StudentNote, error)
}

// CreateNoteRequest is the supervisor payload for annotating a student.
type CreateNoteRequest struct {
	StudentID int64  `json:"studentId" validate:"required"`
	Note      string `json:"note" validate:"required"`
}

// StudentService resolves student profiles and manages supervisor rosters
// and notes. Ownership checks live here: a supervisor only reaches students
// assigned to them.
type StudentService struct {
	students  studentRepository
	notes     noteRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs a student service.
func NewStudentService(students studentRepository, notes noteRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{students: students, notes: notes, validator: validate, logger: logger, now: time.Now}
}

// ResolveByUser maps an authenticated user account to its student profile.
func (s *StudentService) ResolveByUser(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load student profile")
	}
	return student, nil
}

// Roster lists the students assigned to a supervisor.
func (s *StudentService) Roster(ctx context.Context, supervisorID string) ([]models.Student, error) {
	students, err := s.students.ListBySupervisor(ctx, supervisorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list students")
	}
	return students, nil
}

// Authorize verifies that the student exists and is assigned to the
// supervisor, returning the profile on success.
func (s *StudentService) Authorize(ctx context.Context, supervisorID string, studentID int64) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load student")
	}
	if student.SupervisorID != supervisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to this supervisor")
	}
	return student, nil
}

// AddNote records a free-text supervisor annotation.
func (s *StudentService) AddNote(ctx context.Context, supervisorID string, req CreateNoteRequest) (*models.StudentNote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	if strings.TrimSpace(req.Note) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "note must not be blank")
	}
	if _, err := s.Authorize(ctx, supervisorID, req.StudentID); err != nil {
		return nil, err
	}

	note := &models.StudentNote{
		StudentID:    req.StudentID,
		SupervisorID: supervisorID,
		Note:         strings.TrimSpace(req.Note),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to persist note")
	}
	return note, nil
}

// Notes lists a student's annotations, newest first.
func (s *StudentService) Notes(ctx context.Context, supervisorID string, studentID int64) ([]models.StudentNote, error) {
	if _, err := s.Authorize(ctx, supervisorID, studentID); err != nil {
		return nil, err
	}
	notes, err := s.notes.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list notes")
	}
	return notes, nil
}
