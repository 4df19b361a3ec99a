// Package jobs keeps the ledger of asynchronous batch ingestion jobs in
// PostgreSQL.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/thirai-kg/backend/internal/util"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/loader"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	// StatusFailed is set when every item of a job failed.
	StatusFailed Status = "failed"
)

// item error messages are clipped to this many runes
const maxErrorRunes = 2000

var (
	ErrNotFound = errors.New("job not found")
	ErrNoItems  = errors.New("job has no items")
)

// Item is one source of a job together with its outcome.
type Item struct {
	Position  int                  `json:"position"`
	Source    loader.Source        `json:"source"`
	Status    Status               `json:"status"`
	Report    *common.IngestReport `json:"report,omitempty"`
	ErrorKind string               `json:"error_kind,omitempty"`
	Error     string               `json:"error,omitempty"`
}

type Job struct {
	ID         int64                `json:"-"`
	PublicID   string               `json:"id"`
	Status     Status               `json:"status"`
	Total      int                  `json:"total"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Totals     *common.UpsertReport `json:"totals,omitempty"`
	CreatedBy  string               `json:"created_by,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	StartedAt  *time.Time           `json:"started_at,omitempty"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Items      []Item               `json:"items,omitempty"`
}

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads and writes jobs.
type Store struct {
	db dbConn
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Create stores a pending job with one item per source and returns it.
func (s *Store) Create(ctx context.Context, createdBy string, sources []loader.Source) (*Job, error) {
	if len(sources) == 0 {
		return nil, ErrNoItems
	}
	publicID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	job := &Job{PublicID: publicID, Status: StatusPending, Total: len(sources), CreatedBy: createdBy}
	err = tx.QueryRow(ctx, createJobSQL, publicID, len(sources), nullText(createdBy)).Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	rows := make([][]any, 0, len(sources))
	for i, src := range sources {
		rows = append(rows, []any{job.ID, i, string(src.Kind), util.SanitizePostgresText(src.Ref), string(StatusPending)})
		job.Items = append(job.Items, Item{Position: i, Source: src, Status: StatusPending})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"ingest_job_items"},
		[]string{"job_id", "position", "source_kind", "source_ref", "status"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add job items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit job: %w", err)
	}
	return job, nil
}

// Get returns the job with its items.
func (s *Store) Get(ctx context.Context, publicID string) (*Job, error) {
	job, err := s.getJob(ctx, publicID)
	if err != nil {
		return nil, err
	}
	job.Items, err = s.getItems(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Start marks the job running and returns it with the items that still need
// work. Items finished by an earlier delivery are kept as they are.
func (s *Store) Start(ctx context.Context, publicID string) (*Job, error) {
	job, err := s.getJob(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, startJobSQL, job.ID); err != nil {
		return nil, fmt.Errorf("failed to start job: %w", err)
	}
	job.Status = StatusRunning

	items, err := s.getItems(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.Status == StatusPending || it.Status == StatusRunning {
			job.Items = append(job.Items, it)
		}
	}
	return job, nil
}

// RecordItem stores the outcome of one item.
func (s *Store) RecordItem(ctx context.Context, jobID int64, position int, outcome common.BatchItem) error {
	status := StatusDone
	if !outcome.OK {
		status = StatusFailed
	}
	var report []byte
	if outcome.Report != nil {
		b, err := json.Marshal(outcome.Report)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		report = []byte(util.SanitizePostgresText(string(b)))
	}

	_, err := s.db.Exec(ctx, recordItemSQL,
		jobID, position, string(status), report,
		nullText(outcome.Kind), nullText(util.ClipText(util.SanitizePostgresText(outcome.Error), maxErrorRunes)),
	)
	if err != nil {
		return fmt.Errorf("failed to record item %d: %w", position, err)
	}
	return nil
}

// Finish aggregates the item outcomes into the job row.
func (s *Store) Finish(ctx context.Context, jobID int64) (*Job, error) {
	items, err := s.getItems(ctx, jobID)
	if err != nil {
		return nil, err
	}
	summary := summarize(items)
	totals, err := json.Marshal(summary.totals)
	if err != nil {
		return nil, fmt.Errorf("failed to encode totals: %w", err)
	}

	var publicID string
	err = s.db.QueryRow(ctx, finishJobSQL, jobID, string(summary.status), summary.succeeded, summary.failed, totals).Scan(&publicID)
	if err != nil {
		return nil, fmt.Errorf("failed to finish job: %w", err)
	}
	return s.Get(ctx, publicID)
}

func (s *Store) getJob(ctx context.Context, publicID string) (*Job, error) {
	var (
		job       Job
		status    string
		totals    []byte
		createdBy pgtype.Text
		started   pgtype.Timestamptz
		finished  pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, getJobSQL, publicID).Scan(
		&job.ID, &job.PublicID, &status, &job.Total, &job.Succeeded, &job.Failed,
		&totals, &createdBy, &job.CreatedAt, &started, &finished,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Status = Status(status)
	job.CreatedBy = createdBy.String
	if started.Valid {
		job.StartedAt = &started.Time
	}
	if finished.Valid {
		job.FinishedAt = &finished.Time
	}
	if len(totals) > 0 {
		job.Totals = &common.UpsertReport{}
		if err := json.Unmarshal(totals, job.Totals); err != nil {
			return nil, fmt.Errorf("failed to decode totals: %w", err)
		}
	}
	return &job, nil
}

func (s *Store) getItems(ctx context.Context, jobID int64) ([]Item, error) {
	rows, err := s.db.Query(ctx, getItemsSQL, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it        Item
			kind      string
			status    string
			report    []byte
			errorKind pgtype.Text
			errText   pgtype.Text
		)
		if err := rows.Scan(&it.Position, &kind, &it.Source.Ref, &status, &report, &errorKind, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan job item: %w", err)
		}
		it.Source.Kind = loader.SourceKind(kind)
		it.Status = Status(status)
		it.ErrorKind = errorKind.String
		it.Error = errText.String
		if len(report) > 0 {
			it.Report = &common.IngestReport{}
			if err := json.Unmarshal(report, it.Report); err != nil {
				return nil, fmt.Errorf("failed to decode item report: %w", err)
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type jobSummary struct {
	status    Status
	succeeded int
	failed    int
	totals    common.UpsertReport
}

func summarize(items []Item) jobSummary {
	var s jobSummary
	for _, it := range items {
		switch it.Status {
		case StatusDone:
			s.succeeded++
			if it.Report != nil {
				s.totals.Add(it.Report.UpsertReport)
			}
		case StatusFailed:
			s.failed++
		}
	}
	s.status = StatusDone
	if s.succeeded == 0 && s.failed > 0 {
		s.status = StatusFailed
	}
	return s
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

const createJobSQL = `
INSERT INTO ingest_jobs (public_id, status, total, created_by)
VALUES ($1, 'pending', $2, $3)
RETURNING id, created_at;
`

const getJobSQL = `
SELECT id, public_id, status, total, succeeded, failed, totals, created_by, created_at, started_at, finished_at
FROM ingest_jobs
WHERE public_id = $1;
`

const getItemsSQL = `
SELECT position, source_kind, source_ref, status, report, error_kind, error
FROM ingest_job_items
WHERE job_id = $1
ORDER BY position;
`

const startJobSQL = `
UPDATE ingest_jobs
SET status = 'running',
    started_at = COALESCE(started_at, now())
WHERE id = $1;
`

const recordItemSQL = `
UPDATE ingest_job_items
SET status = $3,
    report = $4,
    error_kind = $5,
    error = $6,
    updated_at = now()
WHERE job_id = $1 AND position = $2;
`

const finishJobSQL = `
UPDATE ingest_jobs
SET status = $2,
    succeeded = $3,
    failed = $4,
    totals = $5,
    finished_at = now()
WHERE id = $1
RETURNING public_id;
`
