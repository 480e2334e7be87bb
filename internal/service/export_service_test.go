package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/epa-eval-api/internal/models"
	"github.com/noah-isme/epa-eval-api/pkg/export"
	"github.com/noah-isme/epa-eval-api/pkg/storage"
)

type fakeOverviewSource struct {
	summaries []models.CoreEpaProgressSummary
	err       error
}

func (f *fakeOverviewSource) SupervisorOverview(_ context.Context, _ int64) ([]models.CoreEpaProgressSummary, error) {
	return f.summaries, f.err
}

type fakeCSVRenderer struct {
	dataset export.Dataset
	payload []byte
	err     error
}

func (f *fakeCSVRenderer) Render(data export.Dataset) ([]byte, error) {
	f.dataset = data
	return f.payload, f.err
}

type fakePDFRenderer struct {
	dataset export.Dataset
	title   string
	payload []byte
	err     error
}

func (f *fakePDFRenderer) Render(data export.Dataset, title string) ([]byte, error) {
	f.dataset = data
	f.title = title
	return f.payload, f.err
}

func newExportFixture(t *testing.T, csv *fakeCSVRenderer, pdf *fakePDFRenderer) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rating := 3.5
	recordRating := 4
	return NewExportService(ExportServiceParams{
		Scores: &stubScoreProvider{breakdown: &models.ScoreBreakdown{
			Behaviors: []models.BehaviorRecord{
				{
					ID:             1,
					Description:    "Obtains informed consent",
					CoreEpaName:    "Patient Care",
					IsMet:          true,
					Rating:         &recordRating,
					EvaluationDate: time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC),
				},
			},
		}},
		Overview: &fakeOverviewSource{summaries: []models.CoreEpaProgressSummary{
			{
				CoreEpaID:          1,
				CoreEpaName:        "Patient Care",
				TotalBehaviors:     10,
				EvaluatedBehaviors: 6,
				MetBehaviors:       5,
				PercentageScore:    50,
				AverageRating:      &rating,
			},
		}},
		Students: &fakeStudentRepo{student: &models.Student{ID: 7, FullName: "Ada Sari"}},
		Storage:  store,
		Signer:   storage.NewSignedURLSigner("secret", time.Hour),
		Config:   ExportConfig{APIPrefix: "/api"},
		CSV:      csv,
		PDF:      pdf,
	})
}

func TestExportGenerateCSV(t *testing.T) {
	csv := &fakeCSVRenderer{payload: []byte("csv-bytes")}
	svc := newExportFixture(t, csv, &fakePDFRenderer{})

	job := &models.ReportJob{ID: "job-1", StudentID: 7, Format: models.ReportFormatCSV}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.URL, "/api/reports/download/"))
	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.Contains(t, result.RelativePath, "progress_student7_")
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	// token round-trips through the signer
	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestExportDatasetShape(t *testing.T) {
	csv := &fakeCSVRenderer{payload: []byte("csv-bytes")}
	svc := newExportFixture(t, csv, &fakePDFRenderer{})

	_, err := svc.Generate(context.Background(), &models.ReportJob{ID: "job-1", StudentID: 7, Format: models.ReportFormatCSV})
	require.NoError(t, err)

	require.Len(t, csv.dataset.Rows, 2)
	summary := csv.dataset.Rows[0]
	assert.Equal(t, "Summary", summary["Section"])
	assert.Equal(t, "Patient Care", summary["Core EPA"])
	assert.Equal(t, "50", summary["Score (%)"])
	assert.Equal(t, "3.50", summary["Rating"])

	behavior := csv.dataset.Rows[1]
	assert.Equal(t, "Behavior", behavior["Section"])
	assert.Equal(t, "Obtains informed consent", behavior["Item"])
	assert.Equal(t, "yes", behavior["Met"])
	assert.Equal(t, "4", behavior["Rating"])
	assert.Equal(t, "2026-04-10", behavior["Date"])
}

func TestExportGeneratePDFUsesTitle(t *testing.T) {
	pdf := &fakePDFRenderer{payload: []byte("pdf-bytes")}
	svc := newExportFixture(t, &fakeCSVRenderer{}, pdf)

	_, err := svc.Generate(context.Background(), &models.ReportJob{ID: "job-2", StudentID: 7, Format: models.ReportFormatPDF})
	require.NoError(t, err)
	assert.Equal(t, "EPA Progress Report Ada Sari", pdf.title)
}

func TestExportGenerateRejectsUnknownFormat(t *testing.T) {
	svc := newExportFixture(t, &fakeCSVRenderer{}, &fakePDFRenderer{})

	_, err := svc.Generate(context.Background(), &models.ReportJob{ID: "job-3", StudentID: 7, Format: models.ReportFormat("xlsx")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}
