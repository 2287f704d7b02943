package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func newTestManager(t *testing.T, opts ...Option) (*Manager, *eventRecorder) {
	t.Helper()

	rec := &eventRecorder{}
	global := NewListeners(discardLogger())
	global.Add(rec)

	opts = append([]Option{WithLogger(discardLogger()), WithListeners(global)}, opts...)
	m := NewManager(opts...)
	t.Cleanup(m.Shutdown)
	return m, rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// latch - счетчик обратного отсчета, ожидание которого прерывается ctx.
type latch struct {
	mu    sync.Mutex
	count int
	ch    chan struct{}
}

func newLatch(n int) *latch {
	l := &latch{count: n, ch: make(chan struct{})}
	if n <= 0 {
		close(l.ch)
	}
	return l
}

func (l *latch) countDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.ch)
	}
}

func (l *latch) await(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *latch) wait(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, l.await(ctx), "latch was not released in time")
}

type recorded struct {
	Type EventType
	Mode Mode
	Job  string
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *eventRecorder) JobChanged(e JobChangeEvent) {
	rec := recorded{Type: e.Type, Mode: e.Mode}
	if e.Future != nil {
		rec.Job = e.Future.Input().Name()
	}
	r.mu.Lock()
	r.events = append(r.events, rec)
	r.mu.Unlock()
}

func (r *eventRecorder) forJob(name string) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, e := range r.events {
		if e.Job == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.events...)
}

// protocol собирает шаги выполнения задачи.
type protocol struct {
	mu    sync.Mutex
	steps []string
}

func (p *protocol) add(step string) {
	p.mu.Lock()
	p.steps = append(p.steps, step)
	p.mu.Unlock()
}

func (p *protocol) get() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.steps...)
}

func named(name string) *JobInput {
	return EmptyInput().WithName(name)
}
