package jobs

import "sync/atomic"

// RunMonitor отражает запрос на отмену выполняемой задачи. Задача опрашивает
// его через CurrentMonitor(ctx).IsCancelled() и завершается добровольно.
type RunMonitor struct {
	cancelled atomic.Bool
}

// IsCancelled сообщает, была ли запрошена отмена.
func (m *RunMonitor) IsCancelled() bool {
	return m != nil && m.cancelled.Load()
}

func (m *RunMonitor) cancel() bool {
	return m.cancelled.CompareAndSwap(false, true)
}
