package bootstrap

import (
	"context"
	"errors"
	"sync"

	"order_worker/adapter/in/worker"
	"order_worker/config"
	"order_worker/internal/stream"
	"order_worker/pkg/apperr"
	"order_worker/pkg/logger"

	"github.com/rs/zerolog"
)

// Worker consumes queued extraction batches from the Redis stream.
type Worker struct {
	pool     *worker.Pool
	consumer *stream.Consumer
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}
	if deps.Stream == nil || deps.Results == nil {
		cleanup()
		return nil, nil, apperr.ConfigError("worker mode requires REDIS_URL")
	}

	zlog := logger.Component("worker")

	handler := worker.NewHandler(
		worker.NewBatchProcessor(deps.Imports, deps.Results, cfg.ResultTTL(), zlog),
	)

	poolConfig := worker.DefaultPoolConfig()
	poolConfig.Workers = cfg.ExtractWorkers
	poolConfig.JobTimeout = cfg.BatchTimeout()
	pool := worker.NewPool(handler, poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:     pool,
		consumer: stream.NewConsumer(deps.Stream, pool, cfg.WorkerID, zlog),
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		zlog:     zlog,
	}
	logger.Info("Worker configured (consumer: %s, workers: %d)", cfg.WorkerID, poolConfig.Workers)

	return w, cleanup, nil
}

// Start runs the pool and the stream consumer and blocks until Cancel or a
// consumer failure.
func (w *Worker) Start() {
	if err := w.pool.Start(); err != nil {
		w.zlog.Error().Err(err).Msg("failed to start worker pool")
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.zlog.Error().Err(err).Msg("stream consumer error")
			w.cancel()
		}
	}()

	<-w.ctx.Done()
}

// Cancel makes Start return. Call Stop afterwards to drain the pool.
func (w *Worker) Cancel() {
	w.cancel()
}

// Stop stops consuming first so no job is submitted to a closed pool.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.pool.Stop()
}

func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}
