package jobs

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"jobkit/internal/shared"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule ставит работу в пул для немедленного выполнения.
func Schedule[R any](m *Manager, work Work[R], in *JobInput) (*Future[R], error) {
	return ScheduleDelayed(m, work, 0, in)
}

// ScheduleDelayed ставит работу в пул по истечении delay. Отмена до срока
// снимает таймер, и работа не выполняется.
func ScheduleDelayed[R any](m *Manager, work Work[R], delay time.Duration, in *JobInput) (*Future[R], error) {
	t, err := m.prepare(toCallable(work), in, false)
	if err != nil {
		return nil, err
	}

	if delay <= 0 {
		m.submit(t)
	} else {
		timer := time.AfterFunc(delay, func() { m.submit(t) })
		t.setStop(func() { timer.Stop() })
	}
	return &Future[R]{task: t}, nil
}

// ScheduleAtFixedRate выполняет action через initialDelay, затем каждые period,
// пока future не отменена или менеджер не остановлен. Одна future представляет
// всю серию. Ошибка выполнения завершает серию.
func ScheduleAtFixedRate(m *Manager, action Action, initialDelay, period time.Duration, in *JobInput) (*Future[Void], error) {
	if period <= 0 {
		return nil, shared.NewProcessingError("invalid fixed rate schedule", nil).WithContextInfo("period", period.String())
	}
	return m.schedulePeriodic(action, &fixedRate{initial: initialDelay, period: period}, in)
}

// ScheduleCron выполняет action по cron-выражению (поле секунд необязательно,
// поддерживаются дескрипторы вида @every 5s).
func ScheduleCron(m *Manager, action Action, spec string, in *JobInput) (*Future[Void], error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, shared.NewProcessingError("invalid cron schedule", err).WithContextInfo("spec", spec)
	}
	return m.schedulePeriodic(action, sched, in)
}

// RunNow выполняет работу синхронно в горутине вызывающего, минуя пул.
// Вложенный вызов из задачи того же менеджера не создает новую future: работа
// выполняется в рамках внешней задачи, без событий и без захвата семафора
// выполнения. Ошибки возвращаются
// вызывающему уже транслированными; паника пробрасывается дальше.
func RunNow[R any](ctx context.Context, m *Manager, work Work[R], in *JobInput) (R, error) {
	var zero R
	if in == nil {
		in = EmptyInput()
	}
	callable := m.InterceptCallable(toCallable(work), in)

	if outer, ok := ctx.Value(futureKey).(*task); ok && outer != nil && outer.m == m {
		if m.IsShutdown() {
			return zero, shared.NewRejectionError("job manager is shut down").WithContextInfo("job", in.Name())
		}
		v, err := callable(ctx)
		return resultAs[R](v), err
	}

	t := newTask(m, in, ModeSync, callable)
	if err := m.register(t, true); err != nil {
		return zero, err
	}
	defer m.wg.Done()

	permit := in.ExecutionSemaphore()
	if err := permit.acquire(ctx, t); err != nil {
		if t.Cancel(false) {
			return zero, shared.NewInterruptionError("failed to acquire execution permit", err).WithContextInfo("job", in.Name())
		}
		_, err := t.await(context.Background(), 0)
		return zero, err
	}
	defer permit.release()

	runCtx, ok := t.beginRun(ctx)
	if !ok {
		_, err := t.await(context.Background(), 0)
		return zero, err
	}
	m.notify(EventAboutToRun, t)
	if !t.announce() {
		t.endRun(nil, nil)
		_, err := t.await(context.Background(), 0)
		return zero, err
	}

	m.runInline(withFuture(runCtx, t), t)
	v, err := t.await(context.Background(), 0)
	return resultAs[R](v), err
}

// runInline выполняет цепочку в горутине вызывающего. При панике задача
// завершается с *shared.PanicError, после чего паника продолжается.
func (m *Manager) runInline(ctx context.Context, t *task) {
	completed := false
	defer func() {
		if completed {
			return
		}
		r := recover()
		t.endRun(nil, &shared.PanicError{Value: r, Stack: string(debug.Stack())})
		panic(r)
	}()

	v, err := t.callable(ctx)
	completed = true
	t.endRun(v, err)
}

// prepare оборачивает работу цепочкой перехватчиков, ставит задачу на учет
// и уведомляет о планировании.
func (m *Manager) prepare(callable Callable, in *JobInput, periodic bool) (*task, error) {
	if in == nil {
		in = EmptyInput()
	}
	t := newTask(m, in, ModeAsync, m.InterceptCallable(callable, in))
	t.periodic = periodic
	if err := m.register(t, false); err != nil {
		m.logger.Debug("job rejected", "job", in.Name(), "error", err)
		return nil, err
	}
	m.notify(EventScheduled, t)
	return t, nil
}

func (m *Manager) schedulePeriodic(action Action, sched cron.Schedule, in *JobInput) (*Future[Void], error) {
	t, err := m.prepare(toCallable[Void](action), in, true)
	if err != nil {
		return nil, err
	}

	job := overlapChain(t.input.OverlapPolicy(), m.cronLog).Then(cron.FuncJob(func() {
		if !m.enter() {
			return
		}
		defer m.wg.Done()
		m.execute(t)
	}))
	id := m.cron.Schedule(sched, job)
	t.setStop(func() { m.cron.Remove(id) })

	m.logger.Debug("periodic job scheduled", "job", t.input.Name(), "future_id", t.id, "entry_id", id)
	return &Future[Void]{task: t}, nil
}

func overlapChain(policy OverlapPolicy, logger cron.Logger) cron.Chain {
	if policy == DelayIfRunning {
		return cron.NewChain(cron.DelayIfStillRunning(logger))
	}
	return cron.NewChain(cron.SkipIfStillRunning(logger))
}

// fixedRate - расписание cron: первый запуск через initial, далее каждые period.
type fixedRate struct {
	initial time.Duration
	period  time.Duration
	started atomic.Bool
}

func (s *fixedRate) Next(t time.Time) time.Time {
	if s.started.CompareAndSwap(false, true) {
		return t.Add(s.initial)
	}
	return t.Add(s.period)
}
