package jobs

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ExecutionSemaphore ограничивает число одновременно выполняющихся задач,
// которым он назначен. Семафор с одним разрешением дает взаимное исключение.
// Задача ждет разрешения в состоянии Scheduled, и отмена прерывает ожидание.
type ExecutionSemaphore struct {
	permits int64
	sem     *semaphore.Weighted
}

// NewExecutionSemaphore создает семафор с permits разрешениями (не меньше одного).
func NewExecutionSemaphore(permits int) *ExecutionSemaphore {
	if permits < 1 {
		permits = 1
	}
	return &ExecutionSemaphore{
		permits: int64(permits),
		sem:     semaphore.NewWeighted(int64(permits)),
	}
}

// Permits возвращает число разрешений.
func (s *ExecutionSemaphore) Permits() int {
	return int(s.permits)
}

// acquire ждет разрешения, пока не отменены ctx или сама задача. Для nil
// семафора ничего не делает.
func (s *ExecutionSemaphore) acquire(ctx context.Context, t *task) error {
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return s.sem.Acquire(ctx, 1)
}

func (s *ExecutionSemaphore) release() {
	if s != nil {
		s.sem.Release(1)
	}
}
