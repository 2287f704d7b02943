package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"jobkit/internal/shared"
)

// cronLogger адаптер для интеграции cron logger с slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrsOf(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	attrs := append([]slog.Attr{slog.Any("error", err)}, attrsOf(keysAndValues)...)
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

func attrsOf(keysAndValues []interface{}) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		attrs = append(attrs, slog.Any(key, keysAndValues[i+1]))
	}
	return attrs
}

// Manager владеет пулом исполнителей, превращает работу и JobInput в
// перехваченный Callable, отслеживает future и реализует отмену, синхронный
// запуск, периодическое выполнение и остановку.
type Manager struct {
	logger       *slog.Logger
	workers      int
	workerPrefix string
	sem          *semaphore.Weighted
	slots        chan int
	cron         *cron.Cron
	cronLog      cronLogger
	global       *Listeners
	local        *Listeners
	before       []Interceptor
	after        []Interceptor
	chain        ChainFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	futures  map[uuid.UUID]*task
	shutdown bool
	stopOnce sync.Once
}

// Option настраивает Manager.
type Option func(*Manager)

// WithWorkers задает размер пула исполнителей.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithWorkerPrefix задает префикс имен исполнителей пула.
func WithWorkerPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.workerPrefix = prefix
		}
	}
}

// WithLogger задает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithListeners задает глобальный реестр слушателей вместо GlobalListeners().
func WithListeners(l *Listeners) Option {
	return func(m *Manager) {
		if l != nil {
			m.global = l
		}
	}
}

// WithInterceptors добавляет перехватчики до (самые внешние) и после
// (непосредственно перед работой) встроенного набора.
func WithInterceptors(before, after []Interceptor) Option {
	return func(m *Manager) {
		m.before = append(m.before, before...)
		m.after = append(m.after, after...)
	}
}

// WithChain переопределяет состав цепочки перехватчиков.
func WithChain(fn ChainFunc) Option {
	return func(m *Manager) { m.chain = fn }
}

// NewManager создает менеджер и запускает движок периодических триггеров.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:       slog.Default(),
		workers:      10,
		workerPrefix: "jobs-worker",
		global:       GlobalListeners(),
		futures:      make(map[uuid.UUID]*task),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With("component", "jobs")
	m.local = NewListeners(m.logger)
	m.sem = semaphore.NewWeighted(int64(m.workers))
	m.slots = make(chan int, m.workers)
	for i := 1; i <= m.workers; i++ {
		m.slots <- i
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.cronLog = cronLogger{logger: m.logger.With("component", "cron")}
	m.cron = cron.New(cron.WithSeconds(), cron.WithLogger(m.cronLog))
	m.cron.Start()

	m.logger.Debug("job manager started", "workers", m.workers)
	return m
}

// Listeners возвращает реестр слушателей этого менеджера.
func (m *Manager) Listeners() *Listeners {
	return m.local
}

// IsShutdown сообщает, остановлен ли менеджер.
func (m *Manager) IsShutdown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shutdown
}

// Visit вызывает visitor для каждой отслеживаемой future (ожидающей или
// выполняющейся), пока он возвращает true. Порядок не гарантируется.
func (m *Manager) Visit(visitor func(Handle) bool) {
	for _, t := range m.snapshot() {
		if !visitor(t) {
			return
		}
	}
}

// Lookup возвращает отслеживаемую future по идентификатору.
func (m *Manager) Lookup(id uuid.UUID) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.futures[id]
	if !ok {
		return nil, false
	}
	return t, true
}

// WaitUntilDone блокирует, пока все future, удовлетворяющие filter, не
// завершатся или не будут отменены. По истечении timeout возвращает ошибку таймаута.
// filter == nil выбирает все future.
func (m *Manager) WaitUntilDone(filter func(Handle) bool, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		var pending Handle
		m.Visit(func(h Handle) bool {
			if !h.IsDone() && (filter == nil || filter(h)) {
				pending = h
				return false
			}
			return true
		})
		if pending == nil {
			return nil
		}

		select {
		case <-pending.Done():
		case <-timer.C:
			return shared.NewTimeoutError("failed to wait for jobs to complete", timeout)
		}
	}
}

// Shutdown прекращает прием работы, отменяет ожидающие задачи, прерывает
// выполняющиеся и ждет их завершения. Повторный вызов ничего не делает.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()

		tasks := m.snapshot()
		m.logger.Info("shutting down job manager", "futures", len(tasks))

		cronCtx := m.cron.Stop()
		for _, t := range tasks {
			t.Cancel(true)
		}
		m.cancel()
		m.wg.Wait()
		<-cronCtx.Done()

		m.emit(JobChangeEvent{Type: EventShutdown, Mode: ModeSync})
		m.logger.Info("job manager stopped")
	})
}

func (m *Manager) snapshot() []*task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]*task, 0, len(m.futures))
	for _, t := range m.futures {
		tasks = append(tasks, t)
	}
	return tasks
}

// register ставит задачу на учет. inline учитывает ее во wait group сразу:
// синхронная задача выполняется в горутине вызывающего.
func (m *Manager) register(t *task, inline bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return shared.NewRejectionError("job manager is shut down").WithContextInfo("job", t.input.Name())
	}
	m.futures[t.id] = t
	if inline {
		m.wg.Add(1)
	}
	return nil
}

func (m *Manager) unregister(t *task) {
	m.mu.Lock()
	delete(m.futures, t.id)
	m.mu.Unlock()
}

// enter учитывает очередное выполнение во wait group, если менеджер не остановлен.
func (m *Manager) enter() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shutdown {
		return false
	}
	m.wg.Add(1)
	return true
}

// submit передает задачу в пул.
func (m *Manager) submit(t *task) {
	if !m.enter() {
		t.Cancel(false)
		return
	}
	go func() {
		defer m.wg.Done()
		m.execute(t)
	}()
}

// execute занимает исполнителя пула и выполняет задачу. Вызывается в
// горутине, учтенной через enter.
func (m *Manager) execute(t *task) {
	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		t.Cancel(false)
		return
	}
	defer m.sem.Release(1)

	slot := <-m.slots
	defer func() { m.slots <- slot }()

	permit := t.input.ExecutionSemaphore()
	if err := permit.acquire(m.ctx, t); err != nil {
		t.Cancel(false)
		return
	}
	defer permit.release()

	ctx, ok := t.beginRun(m.ctx)
	if !ok {
		return
	}
	m.notify(EventAboutToRun, t)
	if !t.announce() {
		t.endRun(nil, nil)
		return
	}

	ctx = withFuture(WithWorkerName(ctx, fmt.Sprintf("%s-%d", m.workerPrefix, slot)), t)
	start := time.Now()
	v, err := m.invoke(ctx, t)
	t.endRun(v, err)

	switch {
	case t.IsCancelled():
		m.logger.Debug("cancelled job unwound", "job", t.input.Name(), "future_id", t.id, "duration", time.Since(start))
	case err != nil:
		m.logger.Error("job failed", "job", t.input.Name(), "future_id", t.id, "error", err, "duration", time.Since(start))
	default:
		m.logger.Debug("job completed", "job", t.input.Name(), "future_id", t.id, "duration", time.Since(start))
	}
}

// invoke выполняет цепочку задачи в горутине пула. Паника не транслируется:
// она фиксируется как *shared.PanicError и логируется со стеком.
func (m *Manager) invoke(ctx context.Context, t *task) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			m.logger.Error("job panicked", "job", t.input.Name(), "future_id", t.id, "panic", r, "stack", stack)
			v, err = nil, &shared.PanicError{Value: r, Stack: stack}
		}
	}()
	return t.callable(ctx)
}

func (m *Manager) notify(typ EventType, t *task) {
	m.emit(JobChangeEvent{Type: typ, Mode: t.mode, Future: t})
}

func (m *Manager) emit(e JobChangeEvent) {
	m.global.Notify(e)
	m.local.Notify(e)
}

func (m *Manager) safeHandler(fn func(Handle), t *task) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("done handler panicked", "job", t.input.Name(), "future_id", t.id, "panic", r)
		}
	}()
	fn(t)
}
