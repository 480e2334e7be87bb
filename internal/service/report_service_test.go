package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/epa-eval-api/internal/models"
	"github.com/noah-isme/epa-eval-api/internal/repository"
	appErrors "github.com/noah-isme/epa-eval-api/pkg/errors"
	"github.com/noah-isme/epa-eval-api/pkg/jobs"
)

type fakeReportStore struct {
	jobs    map[string]*models.ReportJob
	queued  []models.ReportJob
	updates []repository.UpdateReportJobParams
	seq     int
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{jobs: make(map[string]*models.ReportJob)}
}

func (f *fakeReportStore) Create(_ context.Context, job *models.ReportJob) error {
	f.seq++
	job.ID = fmt.Sprintf("job-%d", f.seq)
	job.CreatedAt = time.Now().UTC()
	clone := *job
	f.jobs[job.ID] = &clone
	return nil
}

func (f *fakeReportStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *job
	return &clone, nil
}

func (f *fakeReportStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	f.updates = append(f.updates, params)
	job, ok := f.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (f *fakeReportStore) ListQueued(_ context.Context, _ int) ([]models.ReportJob, error) {
	return f.queued, nil
}

type fakeDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

type fakeAccessChecker struct {
	err error
}

func (f *fakeAccessChecker) Authorize(_ context.Context, _ string, _ int64) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Student{ID: 7}, nil
}

type fakeGenerator struct {
	result *ExportResult
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(_ context.Context, _ *models.ReportJob) (*ExportResult, error) {
	f.calls++
	return f.result, f.err
}

func TestCreateJobQueuesAndEnqueues(t *testing.T) {
	store := newFakeReportStore()
	queue := &fakeDispatcher{}
	svc := NewReportService(store, &fakeAccessChecker{}, queue, nil, nil, ReportServiceConfig{})

	job, err := svc.CreateJob(context.Background(), CreateReportRequest{StudentID: 7, Format: models.ReportFormatCSV}, "sup-1", models.RoleSupervisor)
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.Equal(t, "sup-1", job.CreatedBy)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
	assert.Equal(t, "progress_report", queue.enqueued[0].Type)
}

func TestCreateJobRejectsUnknownFormat(t *testing.T) {
	svc := NewReportService(newFakeReportStore(), &fakeAccessChecker{}, &fakeDispatcher{}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), CreateReportRequest{StudentID: 7, Format: "xlsx"}, "sup-1", models.RoleSupervisor)
	require.Error(t, err)
}

func TestCreateJobEnforcesSupervisorOwnership(t *testing.T) {
	denied := appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to this supervisor")
	access := &fakeAccessChecker{err: denied}

	svc := NewReportService(newFakeReportStore(), access, &fakeDispatcher{}, nil, nil, ReportServiceConfig{})
	_, err := svc.CreateJob(context.Background(), CreateReportRequest{StudentID: 7, Format: models.ReportFormatCSV}, "sup-2", models.RoleSupervisor)
	require.Error(t, err)

	// admins bypass the ownership check
	_, err = svc.CreateJob(context.Background(), CreateReportRequest{StudentID: 7, Format: models.ReportFormatCSV}, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
}

func TestCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := newFakeReportStore()
	svc := NewReportService(store, &fakeAccessChecker{}, &fakeDispatcher{err: assert.AnError}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), CreateReportRequest{StudentID: 7, Format: models.ReportFormatCSV}, "sup-1", models.RoleSupervisor)
	require.Error(t, err)

	stored := store.jobs["job-1"]
	require.NotNil(t, stored)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}

func TestGetStatusOwnership(t *testing.T) {
	store := newFakeReportStore()
	svc := NewReportService(store, &fakeAccessChecker{}, &fakeDispatcher{}, nil, nil, ReportServiceConfig{})
	job, err := svc.CreateJob(context.Background(), CreateReportRequest{StudentID: 7, Format: models.ReportFormatCSV}, "sup-1", models.RoleSupervisor)
	require.NoError(t, err)

	got, err := svc.GetStatus(context.Background(), job.ID, "sup-1", models.RoleSupervisor)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = svc.GetStatus(context.Background(), job.ID, "sup-2", models.RoleSupervisor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.GetStatus(context.Background(), job.ID, "sup-2", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", "sup-1", models.RoleSupervisor)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestResolveDownload(t *testing.T) {
	exporter := newExportFixture(t, &fakeCSVRenderer{payload: []byte("csv-bytes")}, &fakePDFRenderer{})
	store := newFakeReportStore()
	svc := NewReportService(store, &fakeAccessChecker{}, &fakeDispatcher{}, exporter, nil, ReportServiceConfig{})

	job, err := svc.CreateJob(context.Background(), CreateReportRequest{StudentID: 7, Format: models.ReportFormatCSV}, "sup-1", models.RoleSupervisor)
	require.NoError(t, err)

	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	completed := models.ReportStatusCompleted
	require.NoError(t, store.Update(context.Background(), job.ID, repository.UpdateReportJobParams{
		Status:    &completed,
		FilePath:  &result.RelativePath,
		ResultURL: &result.URL,
	}))

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	assert.NotEmpty(t, download.Filename)
}

func TestResolveDownloadRejectsUnfinishedJob(t *testing.T) {
	exporter := newExportFixture(t, &fakeCSVRenderer{payload: []byte("csv-bytes")}, &fakePDFRenderer{})
	store := newFakeReportStore()
	svc := NewReportService(store, &fakeAccessChecker{}, &fakeDispatcher{}, exporter, nil, ReportServiceConfig{})

	job, err := svc.CreateJob(context.Background(), CreateReportRequest{StudentID: 7, Format: models.ReportFormatCSV}, "sup-1", models.RoleSupervisor)
	require.NoError(t, err)
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NoError(t, store.Update(context.Background(), job.ID, repository.UpdateReportJobParams{ResultURL: &result.URL}))

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	require.Error(t, err)
}

func TestResolveDownloadRejectsBadToken(t *testing.T) {
	exporter := newExportFixture(t, &fakeCSVRenderer{}, &fakePDFRenderer{})
	svc := NewReportService(newFakeReportStore(), &fakeAccessChecker{}, &fakeDispatcher{}, exporter, nil, ReportServiceConfig{})

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
}

func TestRecoverPendingJobs(t *testing.T) {
	store := newFakeReportStore()
	store.queued = []models.ReportJob{{ID: "job-a"}, {ID: "job-b"}}
	queue := &fakeDispatcher{}
	svc := NewReportService(store, &fakeAccessChecker{}, queue, nil, nil, ReportServiceConfig{})

	svc.RecoverPendingJobs(context.Background())

	require.Len(t, queue.enqueued, 2)
	assert.Equal(t, "job-a", queue.enqueued[0].ID)
}

func TestReportWorkerCompletesJob(t *testing.T) {
	store := newFakeReportStore()
	job := &models.ReportJob{StudentID: 7, Format: models.ReportFormatCSV, Status: models.ReportStatusQueued}
	require.NoError(t, store.Create(context.Background(), job))

	generator := &fakeGenerator{result: &ExportResult{RelativePath: "progress.csv", URL: "/api/reports/download/tok"}}
	worker := NewReportWorker(store, generator, 3, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))

	stored := store.jobs[job.ID]
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
	require.NotNil(t, stored.FilePath)
	assert.Equal(t, "progress.csv", *stored.FilePath)
	require.NotNil(t, stored.ResultURL)
	assert.NotNil(t, stored.FinishedAt)
}

func TestReportWorkerRequeuesBeforeMaxRetries(t *testing.T) {
	store := newFakeReportStore()
	job := &models.ReportJob{StudentID: 7, Format: models.ReportFormatCSV, Status: models.ReportStatusQueued}
	require.NoError(t, store.Create(context.Background(), job))

	worker := NewReportWorker(store, &fakeGenerator{err: assert.AnError}, 3, nil)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))
	assert.Equal(t, models.ReportStatusQueued, store.jobs[job.ID].Status)
	assert.Nil(t, store.jobs[job.ID].FinishedAt)
}

func TestReportWorkerFailsAfterMaxRetries(t *testing.T) {
	store := newFakeReportStore()
	job := &models.ReportJob{StudentID: 7, Format: models.ReportFormatCSV, Status: models.ReportStatusQueued}
	require.NoError(t, store.Create(context.Background(), job))

	worker := NewReportWorker(store, &fakeGenerator{err: assert.AnError}, 3, nil)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 3}))
	stored := store.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.NotNil(t, stored.FinishedAt)
}
