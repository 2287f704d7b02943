package jobs

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// EventType - тип события жизненного цикла задачи.
type EventType int

const (
	// EventScheduled - задача поставлена в пул.
	EventScheduled EventType = iota
	// EventAboutToRun - задача начинает выполнение.
	EventAboutToRun
	// EventDone - задача завершена или отменена.
	EventDone
	// EventShutdown - менеджер остановлен.
	EventShutdown
)

func (t EventType) String() string {
	switch t {
	case EventScheduled:
		return "scheduled"
	case EventAboutToRun:
		return "about_to_run"
	case EventDone:
		return "done"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Mode - режим вызова задачи.
type Mode int

const (
	// ModeSync - переход происходит в горутине вызывающего (RunNow, Shutdown).
	ModeSync Mode = iota
	// ModeAsync - задача выполняется в пуле.
	ModeAsync
)

func (m Mode) String() string {
	if m == ModeAsync {
		return "async"
	}
	return "sync"
}

// JobChangeEvent описывает переход задачи. Future равен nil для EventShutdown.
type JobChangeEvent struct {
	Type   EventType
	Mode   Mode
	Future Handle
}

// Listener получает события задач.
type Listener interface {
	JobChanged(e JobChangeEvent)
}

// ListenerFunc адаптирует функцию к Listener.
type ListenerFunc func(e JobChangeEvent)

// JobChanged реализует Listener.
func (f ListenerFunc) JobChanged(e JobChangeEvent) { f(e) }

// ListenerID идентифицирует регистрацию слушателя.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	l  Listener
}

// Listeners - реестр слушателей. Слушатели уведомляются в порядке регистрации.
// Паника слушателя перехватывается и логируется и не влияет на состояние задачи.
type Listeners struct {
	mu      sync.RWMutex
	entries []listenerEntry
	nextID  ListenerID
	logger  *slog.Logger
}

// NewListeners создает пустой реестр.
func NewListeners(logger *slog.Logger) *Listeners {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listeners{logger: logger, nextID: 1}
}

var globalListeners = NewListeners(nil)

// GlobalListeners возвращает реестр уровня процесса. Он создается один раз и
// никогда не уничтожается; слушатели добавляются и удаляются вызывающими.
func GlobalListeners() *Listeners {
	return globalListeners
}

// Add регистрирует слушателя.
func (r *Listeners) Add(l Listener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.entries = append(r.entries, listenerEntry{id: id, l: l})
	return id
}

// Remove удаляет слушателя. Возвращает false, если регистрация не найдена.
func (r *Listeners) Remove(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len возвращает количество зарегистрированных слушателей.
func (r *Listeners) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Notify доставляет событие всем слушателям.
func (r *Listeners) Notify(e JobChangeEvent) {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	for _, entry := range entries {
		r.deliver(entry, e)
	}
}

func (r *Listeners) deliver(entry listenerEntry, e JobChangeEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job listener panicked",
				slog.Uint64("listener_id", uint64(entry.id)),
				slog.String("event", e.Type.String()),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	entry.l.JobChanged(e)
}
