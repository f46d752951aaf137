package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"order_worker/pkg/resilience"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// =============================================================================
// go-pkgz/pool 기반 Job Pool
// =============================================================================

// Processor handles one message. Handler is the production implementation.
type Processor interface {
	Process(ctx context.Context, msg *Message) error
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers        int           // 동시 실행 작업 수
	WorkerChanSize int           // 워커 채널 버퍼 크기
	JobTimeout     time.Duration // 작업 타임아웃
	MaxRetries     int           // 재시도 가능 에러의 최대 재시도 횟수
	RetryBaseDelay time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        2,
		WorkerChanSize: 16,
		JobTimeout:     10 * time.Minute, // 배치 추출은 LLM 호출이 많음
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
	}
}

// Pool runs messages on a go-pkgz/pool worker group with per-job timeouts
// and delayed retries for transient failures.
type Pool struct {
	processor Processor
	config    *PoolConfig

	pool *pool.WorkerGroup[*Message]

	ctx    context.Context
	cancel context.CancelFunc

	// OnDone is called once per message when it is finished for good,
	// successfully or not. The stream consumer acks here.
	OnDone func(msg *Message, err error)

	metrics PoolMetrics
	retries sync.WaitGroup
	log     zerolog.Logger

	started bool
	mu      sync.Mutex
}

// PoolMetrics holds pool counters.
type PoolMetrics struct {
	JobsProcessed  int64
	JobsFailed     int64
	JobsRetried    int64
	AvgProcessTime int64 // milliseconds
	QueueSize      int32
}

// messageWorker implements pool.Worker for Message processing.
type messageWorker struct {
	pool *Pool
}

func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

func NewPool(processor Processor, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		processor: processor,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		log:       log.With().Str("component", "worker_pool").Logger(),
	}
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.pool = pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()

	if err := p.pool.Go(p.ctx); err != nil {
		return fmt.Errorf("start pool: %w", err)
	}
	p.started = true

	p.log.Info().
		Int("workers", p.config.Workers).
		Dur("job_timeout", p.config.JobTimeout).
		Msg("worker pool started")
	return nil
}

// Stop drains submitted jobs and stops the pool. Pending delayed retries are
// dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	p.log.Info().Msg("stopping worker pool...")

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := p.pool.Close(closeCtx); err != nil {
		p.log.Warn().Err(err).Msg("error closing pool")
	}
	p.cancel()
	p.retries.Wait()

	m := p.GetMetrics()
	p.log.Info().
		Int64("processed", m.JobsProcessed).
		Int64("failed", m.JobsFailed).
		Msg("worker pool stopped")
}

// Submit queues msg. It returns false when the pool is not running.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return false
	}
	atomic.AddInt32(&p.metrics.QueueSize, 1)
	p.pool.Submit(msg)
	return true
}

func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()
	defer atomic.AddInt32(&p.metrics.QueueSize, -1)

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	err := p.safeProcess(jobCtx, msg)
	p.updateAvgProcessTime(time.Since(start).Milliseconds())

	if err == nil {
		atomic.AddInt64(&p.metrics.JobsProcessed, 1)
		p.done(msg, nil)
		return nil
	}

	p.log.Error().
		Err(err).
		Str("job_id", msg.ID).
		Str("job_type", msg.Type).
		Int("retries", msg.Retries).
		Msg("job processing failed")

	if msg.Retries < p.config.MaxRetries && resilience.IsRetryable(err) {
		msg.Retries++
		atomic.AddInt64(&p.metrics.JobsRetried, 1)
		p.scheduleRetry(msg)
		return err
	}

	atomic.AddInt64(&p.metrics.JobsFailed, 1)
	p.done(msg, err)
	return err
}

// safeProcess turns a processor panic into an error.
func (p *Pool) safeProcess(ctx context.Context, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return p.processor.Process(ctx, msg)
}

func (p *Pool) scheduleRetry(msg *Message) {
	delay := resilience.Backoff(msg.Retries-1, p.config.RetryBaseDelay)
	p.retries.Add(1)
	go func() {
		defer p.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-p.ctx.Done():
			// 종료 중: ack하지 않고 스트림 pending 상태로 남김
			return
		case <-timer.C:
		}
		if !p.Submit(msg) {
			p.log.Warn().Str("job_id", msg.ID).Msg("retry dropped, pool stopped")
		}
	}()
}

func (p *Pool) done(msg *Message, err error) {
	if p.OnDone != nil {
		p.OnDone(msg, err)
	}
}

func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := atomic.LoadInt64(&p.metrics.AvgProcessTime)
	if current == 0 {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, elapsed)
		return
	}
	atomic.StoreInt64(&p.metrics.AvgProcessTime, (current*9+elapsed)/10)
}

// GetMetrics returns current pool metrics.
func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed:  atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:     atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsRetried:    atomic.LoadInt64(&p.metrics.JobsRetried),
		AvgProcessTime: atomic.LoadInt64(&p.metrics.AvgProcessTime),
		QueueSize:      atomic.LoadInt32(&p.metrics.QueueSize),
	}
}
