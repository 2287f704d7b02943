package jobs

import (
	"context"
	"errors"
	"runtime/pprof"

	"golang.org/x/text/language"

	"jobkit/internal/shared"
)

// Decorator оборачивает следующий Callable цепочки: выполняет подготовку,
// вызывает next и выполняет завершение на любом пути выхода.
type Decorator func(next Callable) Callable

// Interceptor строит Decorator для конкретного входа задачи.
type Interceptor func(in *JobInput) Decorator

// ChainFunc позволяет полностью переопределить состав цепочки: получает
// декораторы по умолчанию (от внешнего к внутреннему) и возвращает итоговый список.
type ChainFunc func(in *JobInput, defaults []Decorator) []Decorator

// Compose оборачивает target декораторами. Первый декоратор - самый внешний.
//
//	Compose(target, a, b, c) выполняется как a → b → c → target
func Compose(target Callable, decorators ...Decorator) Callable {
	for i := len(decorators) - 1; i >= 0; i-- {
		target = decorators[i](target)
	}
	return target
}

// DefaultDecorators возвращает встроенные декораторы в фиксированном порядке.
func DefaultDecorators(in *JobInput) []Decorator {
	return []Decorator{
		TranslateErrors(),
		RenameWorker(in.Name()),
		RunAs(in.Subject()),
		InstallContext(in.Context()),
		InstallLocale(in.Locale()),
	}
}

// InterceptCallable строит цепочку перехватчиков вокруг next:
// before → встроенные декораторы → after → next.
func (m *Manager) InterceptCallable(next Callable, in *JobInput) Callable {
	decorators := make([]Decorator, 0, len(m.before)+5+len(m.after))
	for _, ic := range m.before {
		decorators = append(decorators, ic(in))
	}
	decorators = append(decorators, DefaultDecorators(in)...)
	for _, ic := range m.after {
		decorators = append(decorators, ic(in))
	}
	if m.chain != nil {
		decorators = m.chain(in, decorators)
	}
	return Compose(next, decorators...)
}

// TranslateErrors приводит любую ошибку внутренних звеньев к *shared.ProcessingError.
// Только *shared.ProcessingError верхнего уровня проходит без изменений, обернутая
// в другую ошибку транслируется заново. Прерывание
// контекста выполнения становится ошибкой прерывания. Паники не перехватываются.
func TranslateErrors() Decorator {
	return func(next Callable) Callable {
		return func(ctx context.Context) (any, error) {
			v, err := next(ctx)
			return v, translate(ctx, err)
		}
	}
}

func translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*shared.ProcessingError); ok {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return shared.NewInterruptionError("job interrupted", err)
	}
	return shared.NewProcessingError("job failed", err)
}

// RenameWorker переименовывает исполнителя в "<имя>;job:<задача>" на время
// выполнения и помечает горутину pprof-меткой job. Прежнее имя восстанавливается
// при любом выходе.
func RenameWorker(jobName string) Decorator {
	return func(next Callable) Callable {
		return func(ctx context.Context) (v any, err error) {
			name := WorkerName(ctx) + ";job:" + jobName
			pprof.Do(ctx, pprof.Labels("job", jobName, "worker", name), func(ctx context.Context) {
				v, err = next(WithWorkerName(ctx, name))
			})
			return v, err
		}
	}
}

// RunAs выполняет оставшуюся цепочку от имени принципала. Без принципала
// цепочка выполняется напрямую.
func RunAs(s *Subject) Decorator {
	return func(next Callable) Callable {
		if s == nil {
			return next
		}
		return func(ctx context.Context) (any, error) {
			return next(WithSubject(ctx, s))
		}
	}
}

// InstallContext устанавливает ExecutionContext задачи как текущий на время выполнения.
func InstallContext(ec *ExecutionContext) Decorator {
	return func(next Callable) Callable {
		return func(ctx context.Context) (any, error) {
			return next(WithExecutionContext(ctx, ec))
		}
	}
}

// InstallLocale устанавливает локаль задачи как текущую на время выполнения.
// language.Und снимает текущую локаль.
func InstallLocale(tag language.Tag) Decorator {
	return func(next Callable) Callable {
		return func(ctx context.Context) (any, error) {
			if tag == language.Und {
				return next(context.WithValue(ctx, localeKey, nil))
			}
			return next(WithLocale(ctx, tag))
		}
	}
}
