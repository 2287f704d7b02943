package jobs

import (
	"context"
	"slices"
	"time"

	"golang.org/x/text/language"
)

// OverlapPolicy определяет поведение периодической задачи, если предыдущее
// выполнение еще не завершилось к моменту следующего срабатывания.
type OverlapPolicy int

const (
	// SkipIfRunning пропускает срабатывание (по умолчанию).
	SkipIfRunning OverlapPolicy = iota
	// DelayIfRunning ждет завершения предыдущего выполнения.
	DelayIfRunning
)

// JobInput - конфигурация одной задачи. Методы With* изменяют вход на месте
// и возвращают его же для цепочки вызовов.
type JobInput struct {
	context    *ExecutionContext
	name       string
	id         int64
	subject    *Subject
	locale     language.Tag
	expiration time.Duration
	hints      []string
	overlap    OverlapPolicy
	semaphore  *ExecutionSemaphore
}

// EmptyInput возвращает вход с пустым контекстом и незаданными остальными полями.
func EmptyInput() *JobInput {
	return &JobInput{context: NewExecutionContext()}
}

// DefaultInput снимает текущее окружение ctx в момент вызова: копию
// ExecutionContext, принципала и локаль. Повторно окружение не читается.
func DefaultInput(ctx context.Context) *JobInput {
	in := &JobInput{
		context: CopyContext(CurrentContext(ctx)),
		subject: CurrentSubject(ctx),
	}
	if tag, ok := CurrentLocale(ctx); ok {
		in.locale = tag
	}
	return in
}

// Copy возвращает копию входа с независимым контекстом. Принципал и локаль
// неизменяемы и копируются по ссылке.
func (in *JobInput) Copy() *JobInput {
	cp := *in
	if in.context != nil {
		cp.context = CopyContext(in.context)
	}
	cp.hints = slices.Clone(in.hints)
	return &cp
}

// WithName задает имя задачи.
func (in *JobInput) WithName(name string) *JobInput {
	in.name = name
	return in
}

// WithID задает числовой идентификатор задачи.
func (in *JobInput) WithID(id int64) *JobInput {
	in.id = id
	return in
}

// WithSubject задает принципала.
func (in *JobInput) WithSubject(s *Subject) *JobInput {
	in.subject = s
	return in
}

// WithLocale задает локаль; language.Und означает отсутствие локали.
func (in *JobInput) WithLocale(tag language.Tag) *JobInput {
	in.locale = tag
	return in
}

// WithContext задает ExecutionContext; nil означает отсутствие контекста.
func (in *JobInput) WithContext(ec *ExecutionContext) *JobInput {
	in.context = ec
	return in
}

// WithExpiration задает срок, по истечении которого не начатая задача
// отменяется вместо выполнения.
func (in *JobInput) WithExpiration(d time.Duration) *JobInput {
	in.expiration = d
	return in
}

// WithExecutionHint добавляет подсказку выполнения.
func (in *JobInput) WithExecutionHint(hint string) *JobInput {
	if !slices.Contains(in.hints, hint) {
		in.hints = append(in.hints, hint)
	}
	return in
}

// WithOverlapPolicy задает политику перекрытий для периодических задач.
func (in *JobInput) WithOverlapPolicy(p OverlapPolicy) *JobInput {
	in.overlap = p
	return in
}

// WithExecutionSemaphore задает семафор выполнения. Задачи с общим семафором
// выполняются одновременно не более чем в числе его разрешений. Копии входа
// разделяют один семафор.
func (in *JobInput) WithExecutionSemaphore(s *ExecutionSemaphore) *JobInput {
	in.semaphore = s
	return in
}

// Context возвращает ExecutionContext задачи или nil.
func (in *JobInput) Context() *ExecutionContext { return in.context }

// Name возвращает имя задачи.
func (in *JobInput) Name() string { return in.name }

// ID возвращает числовой идентификатор задачи.
func (in *JobInput) ID() int64 { return in.id }

// Subject возвращает принципала или nil.
func (in *JobInput) Subject() *Subject { return in.subject }

// Locale возвращает локаль; language.Und, если она не задана.
func (in *JobInput) Locale() language.Tag { return in.locale }

// Expiration возвращает срок ожидания запуска; 0 - без срока.
func (in *JobInput) Expiration() time.Duration { return in.expiration }

// ExecutionHints возвращает копию подсказок выполнения.
func (in *JobInput) ExecutionHints() []string { return slices.Clone(in.hints) }

// OverlapPolicy возвращает политику перекрытий периодической задачи.
func (in *JobInput) OverlapPolicy() OverlapPolicy { return in.overlap }

// ExecutionSemaphore возвращает семафор выполнения или nil.
func (in *JobInput) ExecutionSemaphore() *ExecutionSemaphore { return in.semaphore }

// HasExecutionHint сообщает, содержит ли вход подсказку.
func (in *JobInput) HasExecutionHint(hint string) bool {
	return slices.Contains(in.hints, hint)
}
