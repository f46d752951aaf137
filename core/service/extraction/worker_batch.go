package extraction

import (
	"context"
	"sort"
	"time"

	"order_worker/core/domain"
	"order_worker/core/port/out"
	"order_worker/core/service/categorize"
	"order_worker/pkg/apperr"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EmailExtractor runs the chain for one email. *Orchestrator implements it.
type EmailExtractor interface {
	Extract(ctx context.Context, email *domain.EmailContent, retailerHint string, strategy domain.Strategy) (*Extraction, error)
}

const DefaultBatchWorkers = 4

// BatchService extracts a set of emails concurrently, then deduplicates and
// categorizes the results sequentially in received order.
type BatchService struct {
	extractor   EmailExtractor
	categorizer *categorize.Categorizer
	dedup       *Deduplicator
	inventory   out.InventorySnapshot
	writer      out.InventoryRepository
	workers     int
	log         zerolog.Logger
}

// NewBatchService creates the service. writer may be nil, in which case
// import requests only report what would have been added.
func NewBatchService(
	extractor EmailExtractor,
	categorizer *categorize.Categorizer,
	inventory out.InventorySnapshot,
	writer out.InventoryRepository,
	workers int,
	log zerolog.Logger,
) *BatchService {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	if categorizer == nil {
		categorizer = categorize.New()
	}
	return &BatchService{
		extractor:   extractor,
		categorizer: categorizer,
		dedup:       NewDeduplicator(log),
		inventory:   inventory,
		writer:      writer,
		workers:     workers,
		log:         log.With().Str("component", "batch_service").Logger(),
	}
}

// emailJob is one unit of pool work. Exactly one of res/err is set unless
// the job was skipped.
type emailJob struct {
	email   *domain.EmailContent
	res     *Extraction
	err     error
	skipped bool
}

type emailWorker struct {
	batchCtx context.Context
	svc      *BatchService
	req      *domain.BatchRequest
}

// Do checks cancellation before starting; an email already in progress runs
// to completion.
func (w *emailWorker) Do(_ context.Context, job *emailJob) error {
	if w.batchCtx.Err() != nil {
		job.skipped = true
		return nil
	}
	job.res, job.err = w.svc.extractor.Extract(w.batchCtx, job.email, w.req.RetailerHint, w.req.Strategy)
	return nil
}

// RunBatch implements in.BatchService.
func (s *BatchService) RunBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error) {
	if req == nil {
		return nil, apperr.BadRequest("batch request is required")
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	result := &domain.BatchResult{
		ID:        req.ID,
		UserID:    req.UserID,
		StartedAt: time.Now(),
	}

	// 배치당 한 번만 인벤토리 조회
	var items []domain.InventoryItem
	if s.inventory != nil {
		var err error
		items, err = s.inventory.ListForUser(ctx, req.UserID)
		if err != nil {
			return nil, apperr.DatabaseError("list inventory", err)
		}
	}
	snap := NewSnapshot(items)

	jobs := orderedJobs(req.Emails)
	if err := s.extractAll(ctx, req, jobs); err != nil {
		return nil, err
	}

	var accepted []domain.ExtractedProduct
	for _, job := range jobs {
		er := s.settle(job, snap)
		result.TotalFound += er.Found
		result.Accepted += len(er.Products)
		result.Duplicates += er.Duplicates
		accepted = append(accepted, er.Products...)
		result.Emails = append(result.Emails, er)
	}
	result.Cancelled = ctx.Err() != nil || result.CountByStatus(domain.EmailSkipped) > 0

	if req.Import && len(accepted) > 0 && s.writer != nil {
		n, err := s.writer.AddItems(ctx, req.UserID, accepted)
		if err != nil {
			return nil, apperr.DatabaseError("add inventory items", err)
		}
		result.Imported = n
	}

	result.CompletedAt = time.Now()
	s.log.Info().
		Str("batch_id", result.ID.String()).
		Str("user_id", req.UserID.String()).
		Int("emails", len(jobs)).
		Int("found", result.TotalFound).
		Int("accepted", result.Accepted).
		Int("duplicates", result.Duplicates).
		Int("imported", result.Imported).
		Bool("cancelled", result.Cancelled).
		Dur("duration", result.CompletedAt.Sub(result.StartedAt)).
		Msg("batch finished")
	return result, nil
}

// orderedJobs sorts by ReceivedAt ascending with email id as tie-break so
// within-batch duplicate suppression is reproducible.
func orderedJobs(emails []domain.EmailContent) []*emailJob {
	jobs := make([]*emailJob, len(emails))
	for i := range emails {
		e := emails[i]
		jobs[i] = &emailJob{email: &e}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i].email, jobs[j].email
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return a.ID < b.ID
	})
	return jobs
}

func (s *BatchService) extractAll(ctx context.Context, req *domain.BatchRequest, jobs []*emailJob) error {
	if len(jobs) == 0 {
		return nil
	}
	workers := s.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	// 풀 자체는 취소하지 않음; 취소 여부는 작업 단위로 확인
	poolCtx := context.WithoutCancel(ctx)
	worker := &emailWorker{batchCtx: ctx, svc: s, req: req}
	p := pool.New[*emailJob](workers, worker).WithContinueOnError()
	if err := p.Go(poolCtx); err != nil {
		return apperr.InternalWithError(err)
	}
	for _, job := range jobs {
		p.Submit(job)
	}
	if err := p.Close(poolCtx); err != nil {
		s.log.Warn().Err(err).Msg("extraction pool closed with error")
	}
	return nil
}

// settle turns one job into its EmailResult, deduplicating and categorizing
// against snap.
func (s *BatchService) settle(job *emailJob, snap *Snapshot) domain.EmailResult {
	er := domain.EmailResult{EmailID: job.email.ID, Products: []domain.ExtractedProduct{}}

	switch {
	case job.skipped:
		er.Status = domain.EmailSkipped
		return er
	case job.err != nil:
		er.Status = domain.EmailFailed
		er.Error = job.err.Error()
		return er
	case job.res == nil:
		er.Status = domain.EmailSkipped
		return er
	}

	er.Retailer = job.res.Retailer
	er.Found = len(job.res.Products)
	if job.res.Failed() {
		er.Status = domain.EmailFailed
		er.Error = job.res.LastError()
		return er
	}
	if er.Found == 0 {
		er.Status = domain.EmailEmpty
		return er
	}

	accepted, dups := s.dedup.FilterNew(job.res.Products, snap)
	s.categorizer.CategorizeAll(accepted)
	er.Status = domain.EmailSucceeded
	er.Duplicates = len(dups)
	if accepted != nil {
		er.Products = accepted
	}
	return er
}
