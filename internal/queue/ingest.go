package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/thirai-kg/backend/internal/jobs"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/leaselock"
	"github.com/thirai-kg/backend/pkg/loader"
	"github.com/thirai-kg/backend/pkg/logger"
)

// IngestJobMsg is the body of ingest_queue messages.
type IngestJobMsg struct {
	JobID string `json:"job_id"`
}

// JobFinishedMsg is published on EventsExchange with topic
// "ingest.job.<status>" after a job completes.
type JobFinishedMsg struct {
	JobID     string              `json:"job_id"`
	Status    jobs.Status         `json:"status"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Totals    common.UpsertReport `json:"totals"`
}

type jobLedger interface {
	Start(ctx context.Context, publicID string) (*jobs.Job, error)
	RecordItem(ctx context.Context, jobID int64, position int, outcome common.BatchItem) error
	Finish(ctx context.Context, jobID int64) (*jobs.Job, error)
}

type batchIngester interface {
	IngestBatch(ctx context.Context, texts []string) (*common.BatchReport, error)
}

type textResolver interface {
	Resolve(ctx context.Context, src loader.Source) (string, error)
}

type leaser interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// IngestProcessor runs batch ingestion jobs delivered through ingest_queue.
type IngestProcessor struct {
	ledger   jobLedger
	ingester batchIngester
	resolver textResolver
	locks    leaser
	events   publisher
}

type NewIngestProcessorParams struct {
	Ledger   jobLedger
	Ingester batchIngester
	Resolver textResolver
	// Locks prevents two workers from running the same job. Optional.
	Locks leaser
	// Events receives job notifications. Optional.
	Events publisher
}

func NewIngestProcessor(params NewIngestProcessorParams) *IngestProcessor {
	return &IngestProcessor{
		ledger:   params.Ledger,
		ingester: params.Ingester,
		resolver: params.Resolver,
		locks:    params.Locks,
		events:   params.Events,
	}
}

// ErrItemsDeferred is returned when some sources failed to load for a
// transient reason. The job stays open and the message should be retried.
var ErrItemsDeferred = errors.New("ingest items deferred")

// Process handles one message. Redelivered jobs only re-run the items that
// have no recorded outcome; ingestion is idempotent, so a partially applied
// item is safe to repeat. On the last attempt transient load failures are
// recorded as final.
func (p *IngestProcessor) Process(ctx context.Context, body []byte, lastAttempt bool) error {
	var msg IngestJobMsg
	if err := json.Unmarshal(body, &msg); err != nil || msg.JobID == "" {
		// unparseable messages would fail forever
		logger.Error("[Queue] dropping malformed ingest message", "body", string(body), "err", err)
		return nil
	}

	if p.locks == nil {
		return p.run(ctx, msg.JobID, lastAttempt)
	}
	err := p.locks.WithLease(ctx, "ingest_job:"+msg.JobID, leaselock.Options{TTL: 2 * time.Minute}, func(ctx context.Context) error {
		return p.run(ctx, msg.JobID, lastAttempt)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] job is running on another worker", "job_id", msg.JobID)
		return nil
	}
	return err
}

func (p *IngestProcessor) run(ctx context.Context, jobID string, lastAttempt bool) error {
	job, err := p.ledger.Start(ctx, jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		logger.Warn("[Queue] job no longer exists", "job_id", jobID)
		return nil
	}
	if err != nil {
		return err
	}
	log := logger.With("job_id", jobID)
	log.Info("[Queue] running ingest job", "open_items", len(job.Items), "total", job.Total)

	// outcomes are recorded even after ctx ends, so finished work survives
	// a lost lease or shutdown
	recordCtx := context.WithoutCancel(ctx)

	texts := make([]string, 0, len(job.Items))
	positions := make([]int, 0, len(job.Items))
	deferred := 0
	for _, it := range job.Items {
		text, err := p.resolver.Resolve(ctx, it.Source)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			kind := common.KindValidation
			if loader.IsTransient(err) {
				if !lastAttempt {
					log.Warn("[Queue] source temporarily unavailable, deferring", "source", it.Source.Describe(), "err", err)
					deferred++
					continue
				}
				kind = common.KindTransientService
			}
			log.Warn("[Queue] could not load source", "source", it.Source.Describe(), "err", err)
			outcome := common.BatchItem{Index: it.Position, Kind: string(kind), Error: err.Error()}
			if err := p.ledger.RecordItem(recordCtx, job.ID, it.Position, outcome); err != nil {
				return err
			}
			continue
		}
		texts = append(texts, text)
		positions = append(positions, it.Position)
	}

	if len(texts) > 0 {
		report, err := p.ingester.IngestBatch(ctx, texts)
		if err != nil && report == nil {
			return fmt.Errorf("failed to ingest job %s: %w", jobID, err)
		}
		for _, item := range report.Items {
			// after cancellation only successes are final; the rest stay
			// open for the redelivery
			if err != nil && !item.OK {
				continue
			}
			pos := positions[item.Index]
			item.Index = pos
			if err := p.ledger.RecordItem(recordCtx, job.ID, pos, item); err != nil {
				return err
			}
		}
		if err != nil {
			return err
		}
	}

	if deferred > 0 {
		return fmt.Errorf("job %s: %w: %d sources", jobID, ErrItemsDeferred, deferred)
	}

	finished, err := p.ledger.Finish(ctx, job.ID)
	if err != nil {
		return err
	}
	log.Info("[Queue] ingest job finished", "status", finished.Status, "succeeded", finished.Succeeded, "failed", finished.Failed)
	p.notify(ctx, finished)
	return nil
}

func (p *IngestProcessor) notify(ctx context.Context, job *jobs.Job) {
	if p.events == nil {
		return
	}
	msg := JobFinishedMsg{JobID: job.PublicID, Status: job.Status, Succeeded: job.Succeeded, Failed: job.Failed}
	if job.Totals != nil {
		msg.Totals = *job.Totals
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := PublishTopic(ctx, p.events, "ingest.job."+string(job.Status), data); err != nil {
		logger.Warn("[Queue] failed to publish job event", "job_id", job.PublicID, "err", err)
	}
}
