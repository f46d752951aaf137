package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"order_worker/pkg/apperr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProcessor struct {
	mu    sync.Mutex
	errs  map[string][]error // per message id, consumed in order
	calls map[string]int
	panic string
}

func (s *scriptedProcessor) Process(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[msg.ID]++
	if s.panic != "" {
		panic(s.panic)
	}
	if q := s.errs[msg.ID]; len(q) > 0 {
		s.errs[msg.ID] = q[1:]
		return q[0]
	}
	return nil
}

func (s *scriptedProcessor) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

type doneRecorder struct {
	mu   sync.Mutex
	errs map[string]error
	ch   chan string
}

func newDoneRecorder() *doneRecorder {
	return &doneRecorder{errs: map[string]error{}, ch: make(chan string, 16)}
}

func (d *doneRecorder) record(msg *Message, err error) {
	d.mu.Lock()
	d.errs[msg.ID] = err
	d.mu.Unlock()
	d.ch <- msg.ID
}

func (d *doneRecorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-d.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d jobs, got %d", n, i)
		}
	}
}

func testPool(t *testing.T, proc Processor) (*Pool, *doneRecorder) {
	t.Helper()
	p := NewPool(proc, &PoolConfig{
		Workers:        2,
		WorkerChanSize: 4,
		JobTimeout:     time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}, zerolog.Nop())
	rec := newDoneRecorder()
	p.OnDone = rec.record
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)
	return p, rec
}

func TestPool_RetriesTransientErrors(t *testing.T) {
	proc := &scriptedProcessor{errs: map[string][]error{
		"flaky": {apperr.UpstreamTransient("llm", 503, errors.New("busy"))},
	}}
	p, rec := testPool(t, proc)

	require.True(t, p.Submit(&Message{ID: "flaky", Type: JobExtractBatch}))
	rec.wait(t, 1)

	assert.Equal(t, 2, proc.count("flaky"))
	assert.NoError(t, rec.errs["flaky"])
	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.JobsProcessed)
	assert.Equal(t, int64(1), m.JobsRetried)
}

func TestPool_PermanentErrorsAreNotRetried(t *testing.T) {
	proc := &scriptedProcessor{errs: map[string][]error{
		"bad": {apperr.BadRequest("invalid batch payload")},
	}}
	p, rec := testPool(t, proc)

	p.Submit(&Message{ID: "bad", Type: JobExtractBatch})
	rec.wait(t, 1)

	assert.Equal(t, 1, proc.count("bad"))
	assert.True(t, apperr.IsCode(rec.errs["bad"], apperr.CodeBadRequest))
	assert.Equal(t, int64(1), p.GetMetrics().JobsFailed)
}

func TestPool_RetryBudget(t *testing.T) {
	transient := apperr.UpstreamTransient("llm", 500, errors.New("down"))
	proc := &scriptedProcessor{errs: map[string][]error{
		"down": {transient, transient, transient, transient},
	}}
	p, rec := testPool(t, proc)

	p.Submit(&Message{ID: "down", Type: JobExtractBatch})
	rec.wait(t, 1)

	assert.Equal(t, 3, proc.count("down"), "one attempt plus two retries")
	assert.Error(t, rec.errs["down"])
}

func TestPool_PanicBecomesError(t *testing.T) {
	p, rec := testPool(t, &scriptedProcessor{panic: "boom"})

	p.Submit(&Message{ID: "p1", Type: JobExtractBatch})
	rec.wait(t, 1)

	require.Error(t, rec.errs["p1"])
	assert.Contains(t, rec.errs["p1"].Error(), "boom")
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(&scriptedProcessor{}, nil, zerolog.Nop())
	assert.False(t, p.Submit(&Message{ID: "x"}), "not started")

	require.NoError(t, p.Start())
	p.Stop()
	assert.False(t, p.Submit(&Message{ID: "x"}))
}
