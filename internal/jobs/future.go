package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobkit/internal/shared"
)

// State - состояние future.
type State int

const (
	// StateScheduled - задача ожидает выполнения.
	StateScheduled State = iota
	// StateRunning - задача выполняется.
	StateRunning
	// StateDone - задача завершена с результатом или ошибкой.
	StateDone
	// StateCancelled - задача отменена.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Handle - нетипизированное представление future для посетителей и фильтров.
type Handle interface {
	ID() uuid.UUID
	Input() *JobInput
	Mode() Mode
	State() State
	Cancel(force bool) bool
	IsDone() bool
	IsCancelled() bool
	Done() <-chan struct{}
	AwaitFinished(ctx context.Context) error
	WhenDone(fn func(Handle))
}

// Future - типизированный handle запланированной задачи.
type Future[R any] struct {
	*task
}

// Get блокирует до завершения задачи или отмены ctx. Отмененная задача всегда
// возвращает ошибку отмены, даже если ее тело успело вернуть значение.
func (f *Future[R]) Get(ctx context.Context) (R, error) {
	v, err := f.await(ctx, 0)
	return resultAs[R](v), err
}

// GetTimeout ждет завершения не дольше timeout. Истечение ожидания не влияет
// на состояние задачи.
func (f *Future[R]) GetTimeout(timeout time.Duration) (R, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	v, err := f.await(ctx, timeout)
	return resultAs[R](v), err
}

// errInterrupted - причина отмены контекста выполнения при принудительной отмене.
var errInterrupted = errors.New("job interrupted by forced cancellation")

type task struct {
	id       uuid.UUID
	m        *Manager
	input    *JobInput
	mode     Mode
	periodic bool
	created  time.Time
	callable Callable
	monitor  *RunMonitor

	mu        sync.Mutex
	state     State
	result    any
	err       error
	running   bool
	announced bool
	deferred  bool
	pending   []func(Handle)
	interrupt context.CancelCauseFunc
	stop      func()
	handlers  []func(Handle)
	finalized bool
	done      chan struct{}
	finished  chan struct{}
}

func newTask(m *Manager, in *JobInput, mode Mode, callable Callable) *task {
	return &task{
		id:       uuid.New(),
		m:        m,
		input:    in,
		mode:     mode,
		created:  time.Now(),
		callable: callable,
		monitor:  &RunMonitor{},
		state:    StateScheduled,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (t *task) ID() uuid.UUID { return t.id }
func (t *task) Input() *JobInput { return t.input }
func (t *task) Mode() Mode { return t.mode }
func (t *task) Done() <-chan struct{} { return t.done }
func (t *task) Monitor() *RunMonitor { return t.monitor }
func (t *task) IsCancelled() bool { return t.State() == StateCancelled }

// State возвращает текущее состояние.
func (t *task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsDone сообщает, находится ли задача в завершенном состоянии (Done или Cancelled).
func (t *task) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Cancel отменяет задачу. Не начатая задача никогда не выполнится; у
// выполняемой устанавливается флаг монитора, а при force прерывается контекст
// выполнения. Возвращает false, если задача уже завершена или отменена.
// Повторная принудительная отмена после мягкой все же прерывает выполнение.
func (t *task) Cancel(force bool) bool {
	t.mu.Lock()
	switch t.state {
	case StateDone:
		t.mu.Unlock()
		return false
	case StateCancelled:
		interrupt := t.interrupt
		t.mu.Unlock()
		if force && interrupt != nil {
			interrupt(errInterrupted)
		}
		return false
	}

	t.state = StateCancelled
	close(t.done)
	interrupt := t.interrupt
	stop := t.stop
	handlers := t.takeHandlers()
	finish := t.tryFinalize()
	// До доставки ABOUT_TO_RUN событие DONE откладывается до announce.
	deferDone := t.running && !t.announced
	if deferDone {
		t.deferred = true
		t.pending = handlers
	}
	t.mu.Unlock()

	t.monitor.cancel()
	if stop != nil {
		stop()
	}
	if force && interrupt != nil {
		interrupt(errInterrupted)
	}
	t.m.logger.Debug("job cancelled", "job", t.input.Name(), "future_id", t.id, "force", force)
	if !deferDone {
		t.completed(handlers, finish)
	}
	return true
}

// WhenDone регистрирует обратный вызов, выполняемый один раз при переходе в
// завершенное состояние. Для уже завершенной задачи вызывается сразу.
func (t *task) WhenDone(fn func(Handle)) {
	t.mu.Lock()
	if t.state == StateDone || t.state == StateCancelled {
		t.mu.Unlock()
		fn(t)
		return
	}
	t.handlers = append(t.handlers, fn)
	t.mu.Unlock()
}

// AwaitFinished ждет, пока тело задачи действительно завершится. Отмененная,
// но еще выполняющаяся задача считается завершенной (IsDone), но не finished.
func (t *task) AwaitFinished(ctx context.Context) error {
	select {
	case <-t.finished:
		return nil
	case <-ctx.Done():
		return waitError(ctx, "failed to wait for job to finish", 0).WithContextInfo("job", t.input.Name())
	}
}

func (t *task) await(ctx context.Context, timeout time.Duration) (any, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, waitError(ctx, "failed to wait for job to complete", timeout).WithContextInfo("job", t.input.Name())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateCancelled {
		return nil, shared.NewCancellationError("job was cancelled").WithContextInfo("job", t.input.Name())
	}
	return t.result, t.err
}

func waitError(ctx context.Context, msg string, timeout time.Duration) *shared.ProcessingError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if timeout == 0 {
			if deadline, ok := ctx.Deadline(); ok {
				timeout = time.Until(deadline)
			}
		}
		return shared.NewTimeoutError(msg, timeout)
	}
	return shared.NewInterruptionError(msg, ctx.Err())
}

// beginRun переводит задачу в Running и создает контекст выполнения,
// прерываемый принудительной отменой.
func (t *task) beginRun(parent context.Context) (context.Context, bool) {
	t.mu.Lock()
	if t.state != StateScheduled {
		t.mu.Unlock()
		return nil, false
	}
	if exp := t.input.Expiration(); exp > 0 && time.Since(t.created) > exp {
		t.mu.Unlock()
		t.m.logger.Debug("job expired before execution", "job", t.input.Name(), "future_id", t.id)
		t.Cancel(true)
		return nil, false
	}
	ctx, cancel := context.WithCancelCause(parent)
	t.state = StateRunning
	t.running = true
	t.announced = false
	t.interrupt = cancel
	t.mu.Unlock()
	return ctx, true
}

// announce вызывается после доставки ABOUT_TO_RUN. Если задачу отменили
// между beginRun и announce, здесь доставляется отложенное DONE и
// возвращается false: тело задачи не выполняется.
func (t *task) announce() bool {
	t.mu.Lock()
	t.announced = true
	deferred, handlers := t.deferred, t.pending
	t.deferred, t.pending = false, nil
	t.mu.Unlock()

	if !deferred {
		return true
	}
	t.completed(handlers, false)
	return false
}

// endRun фиксирует результат выполнения. Результат отмененной задачи
// отбрасывается: отмена имеет приоритет. Периодическая задача без ошибки
// возвращается в Scheduled.
func (t *task) endRun(v any, err error) {
	t.mu.Lock()
	interrupt := t.interrupt
	t.interrupt = nil
	t.running = false

	var handlers []func(Handle)
	done := false
	if t.state == StateRunning {
		if t.periodic && err == nil {
			t.state = StateScheduled
		} else {
			t.state = StateDone
			t.result, t.err = v, err
			close(t.done)
			handlers = t.takeHandlers()
			done = true
		}
	}
	finish := t.tryFinalize()
	stop := t.stop
	t.mu.Unlock()

	if interrupt != nil {
		interrupt(nil)
	}
	if done && t.periodic && stop != nil {
		stop()
	}
	if done {
		t.completed(handlers, finish)
	} else if finish {
		t.m.unregister(t)
	}
}

// setStop задает функцию остановки триггера. Если задача уже завершена,
// триггер останавливается сразу.
func (t *task) setStop(stop func()) {
	t.mu.Lock()
	if t.state == StateDone || t.state == StateCancelled {
		t.mu.Unlock()
		stop()
		return
	}
	t.stop = stop
	t.mu.Unlock()
}

func (t *task) takeHandlers() []func(Handle) {
	h := t.handlers
	t.handlers = nil
	return h
}

// tryFinalize вызывается под t.mu и сообщает, нужно ли снять задачу с учета.
func (t *task) tryFinalize() bool {
	if t.finalized || t.running {
		return false
	}
	if t.state != StateDone && t.state != StateCancelled {
		return false
	}
	t.finalized = true
	close(t.finished)
	return true
}

func (t *task) completed(handlers []func(Handle), finish bool) {
	t.m.notify(EventDone, t)
	for _, h := range handlers {
		t.m.safeHandler(h, t)
	}
	if finish {
		t.m.unregister(t)
	}
}
