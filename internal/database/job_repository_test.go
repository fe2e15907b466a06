package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

func TestJobRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	createdAt := time.Now()

	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs(
			"job-1", "weekly pdfs", "bulk_scrape", "pending", nil, nil,
			sqlmock.AnyArg(), 1, sqlmock.AnyArg(), sqlmock.AnyArg(), 0, 1, false,
		).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(createdAt, createdAt))

	job := &domain.Job{
		ID:                 "job-1",
		Name:               "weekly pdfs",
		Type:               domain.JobTypeBulkScrape,
		Status:             domain.JobStatusPending,
		TargetURLs:         domain.StringArray{"https://example.edu"},
		ScrapingDepth:      1,
		ContentTypeFilters: domain.StringArray{"pdf"},
		Attempt:            1,
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !job.CreatedAt.Equal(createdAt) {
		t.Errorf("expected created_at from database, got %v", job.CreatedAt)
	}

	expectationsMet(t, mock)
}

func TestJobRepository_Save_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec("UPDATE jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), &domain.Job{ID: "missing", Status: domain.JobStatusRunning})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestJobRepository_List_StatusFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE status = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3")).
		WithArgs("running", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	jobs, err := repo.List(context.Background(), database.JobFilter{Status: "running", Page: 1, Limit: 20})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}

	expectationsMet(t, mock)
}

func TestJobRepository_MarkInterrupted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE jobs SET status = 'paused'")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkInterrupted(context.Background())
	if err != nil {
		t.Fatalf("MarkInterrupted() error = %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 jobs paused, got %d", n)
	}

	expectationsMet(t, mock)
}

func TestJobLogRepository_Append(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobLogRepository(db)

	ts := time.Now()
	mock.ExpectQuery("INSERT INTO job_logs").
		WithArgs("job-1", 2, "https://example.edu/a.pdf", nil, "failed", "", int64(0), nil, sqlmock.AnyArg(), ts).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	entry := &domain.JobLogEntry{
		JobID:     "job-1",
		Attempt:   2,
		URL:       "https://example.edu/a.pdf",
		Status:    domain.LogStatusFailed,
		Errors:    domain.ErrorList{"http status 404"},
		Timestamp: ts,
	}
	if err := repo.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if entry.ID != 42 {
		t.Errorf("expected id 42, got %d", entry.ID)
	}

	expectationsMet(t, mock)
}

func TestJobLogRepository_ListByJob(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobLogRepository(db)

	ts := time.Now()
	mock.ExpectQuery("FROM job_logs").
		WithArgs("job-1", 50, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "job_id", "attempt", "url", "title", "status", "content_type",
			"size_bytes", "quality_score", "errors", "timestamp",
		}).AddRow(int64(51), "job-1", 1, "https://example.edu", nil, "completed", "html", int64(1024), 65, []byte(`[]`), ts))

	entries, err := repo.ListByJob(context.Background(), "job-1", 2, 50)
	if err != nil {
		t.Fatalf("ListByJob() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].QualityScore == nil || *entries[0].QualityScore != 65 {
		t.Errorf("expected quality score 65, got %v", entries[0].QualityScore)
	}

	expectationsMet(t, mock)
}

func TestJobLogRepository_VisitedURLs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobLogRepository(db)

	mock.ExpectQuery("SELECT url FROM job_logs").
		WithArgs("job-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"url"}).
			AddRow("https://example.edu/a.pdf").
			AddRow("https://example.edu/b.pdf"))

	urls, err := repo.VisitedURLs(context.Background(), "job-1", 2)
	if err != nil {
		t.Fatalf("VisitedURLs() error = %v", err)
	}
	if len(urls) != 2 || urls[1] != "https://example.edu/b.pdf" {
		t.Errorf("unexpected urls: %v", urls)
	}

	expectationsMet(t, mock)
}
