package jobs

import (
	"context"
	"log/slog"

	"golang.org/x/text/language"
)

// Subject - принципал, от имени которого выполняется задача.
type Subject struct {
	Name  string
	Roles []string
}

type ctxKey int

const (
	futureKey ctxKey = iota
	monitorKey
	execContextKey
	localeKey
	subjectKey
	workerKey
)

// DefaultWorkerName - имя вызывающей горутины, если оно не задано через WithWorkerName.
const DefaultWorkerName = "main"

// CurrentFuture возвращает future выполняемой задачи или nil вне задачи.
func CurrentFuture(ctx context.Context) Handle {
	if t, ok := ctx.Value(futureKey).(*task); ok && t != nil {
		return t
	}
	return nil
}

// CurrentMonitor возвращает монитор отмены выполняемой задачи или nil вне задачи.
func CurrentMonitor(ctx context.Context) *RunMonitor {
	m, _ := ctx.Value(monitorKey).(*RunMonitor)
	return m
}

// CurrentContext возвращает текущий ExecutionContext или nil.
func CurrentContext(ctx context.Context) *ExecutionContext {
	ec, _ := ctx.Value(execContextKey).(*ExecutionContext)
	return ec
}

// CurrentLocale возвращает текущую локаль.
func CurrentLocale(ctx context.Context) (language.Tag, bool) {
	tag, ok := ctx.Value(localeKey).(language.Tag)
	return tag, ok
}

// CurrentSubject возвращает текущего принципала или nil.
func CurrentSubject(ctx context.Context) *Subject {
	s, _ := ctx.Value(subjectKey).(*Subject)
	return s
}

// WorkerName возвращает имя горутины-исполнителя.
func WorkerName(ctx context.Context) string {
	if name, ok := ctx.Value(workerKey).(string); ok {
		return name
	}
	return DefaultWorkerName
}

// WithExecutionContext устанавливает текущий ExecutionContext.
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, execContextKey, ec)
}

// WithLocale устанавливает текущую локаль.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, localeKey, tag)
}

// WithSubject устанавливает текущего принципала.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// WithWorkerName задает имя вызывающей горутины.
func WithWorkerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerKey, name)
}

func withFuture(ctx context.Context, t *task) context.Context {
	ctx = context.WithValue(ctx, futureKey, t)
	return context.WithValue(ctx, monitorKey, t.monitor)
}

// LogAttrs возвращает атрибуты диагностического контекста задачи для логирования.
func LogAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if t, ok := ctx.Value(futureKey).(*task); ok && t != nil {
		attrs = append(attrs,
			slog.String("job", t.input.Name()),
			slog.Int64("job_id", t.input.ID()),
			slog.String("future_id", t.id.String()),
		)
	}
	if s := CurrentSubject(ctx); s != nil {
		attrs = append(attrs, slog.String("subject", s.Name))
	}
	return attrs
}
