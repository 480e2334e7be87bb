package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/epa-eval-api/internal/models"
	"github.com/noah-isme/epa-eval-api/pkg/export"
	"github.com/noah-isme/epa-eval-api/pkg/storage"
)

type exportScoreSource interface {
	Results(ctx context.Context, studentID int64) (*models.ScoreBreakdown, bool, error)
}

type exportOverviewSource interface {
	SupervisorOverview(ctx context.Context, studentID int64) ([]models.CoreEpaProgressSummary, error)
}

type exportStudentSource interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds progress-report datasets and persists rendered files.
type ExportService struct {
	scores   exportScoreSource
	overview exportOverviewSource
	students exportStudentSource
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// ExportServiceParams wires ExportService dependencies.
type ExportServiceParams struct {
	Scores   exportScoreSource
	Overview exportOverviewSource
	Students exportStudentSource
	Storage  fileStorage
	Signer   *storage.SignedURLSigner
	Logger   *zap.Logger
	Config   ExportConfig
	CSV      csvRenderer
	PDF      pdfRenderer
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Config.ResultTTL <= 0 {
		params.Config.ResultTTL = 24 * time.Hour
	}
	if params.CSV == nil {
		params.CSV = export.NewCSVExporter()
	}
	if params.PDF == nil {
		params.PDF = export.NewPDFExporter()
	}
	return &ExportService{
		scores:   params.Scores,
		overview: params.Overview,
		students: params.Students,
		storage:  params.Storage,
		csv:      params.CSV,
		pdf:      params.PDF,
		signer:   params.Signer,
		logger:   params.Logger,
		cfg:      params.Config,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job.StudentID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api"
	}
	signedURL = fmt.Sprintf("%s/reports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("progress_student%d_%s.%s", job.StudentID, timestamp, job.Format)
}

// buildDataset renders the per-Core-EPA summary table followed by one row
// per evaluated behavior.
func (s *ExportService) buildDataset(ctx context.Context, studentID int64) (export.Dataset, string, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load student: %w", err)
	}
	summaries, err := s.overview.SupervisorOverview(ctx, studentID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	breakdown, _, err := s.scores.Results(ctx, studentID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Section", "Core EPA", "Item", "Evaluated", "Met", "Score (%)", "Rating", "Date"}
	rows := make([]map[string]string, 0, len(summaries)+len(breakdown.Behaviors))
	for _, summary := range summaries {
		row := map[string]string{
			"Section":   "Summary",
			"Core EPA":  summary.CoreEpaName,
			"Item":      fmt.Sprintf("%d behaviors", summary.TotalBehaviors),
			"Evaluated": fmt.Sprintf("%d", summary.EvaluatedBehaviors),
			"Met":       fmt.Sprintf("%d", summary.MetBehaviors),
			"Score (%)": fmt.Sprintf("%d", summary.PercentageScore),
		}
		if summary.AverageRating != nil {
			row["Rating"] = fmt.Sprintf("%.2f", *summary.AverageRating)
		}
		rows = append(rows, row)
	}
	for _, record := range breakdown.Behaviors {
		met := "no"
		if record.IsMet {
			met = "yes"
		}
		row := map[string]string{
			"Section":  "Behavior",
			"Core EPA": record.CoreEpaName,
			"Item":     record.Description,
			"Met":      met,
			"Date":     record.EvaluationDate.UTC().Format("2006-01-02"),
		}
		if record.Rating != nil {
			row["Rating"] = fmt.Sprintf("%d", *record.Rating)
		}
		rows = append(rows, row)
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	title := fmt.Sprintf("EPA Progress Report %s", student.FullName)
	return dataset, title, nil
}
