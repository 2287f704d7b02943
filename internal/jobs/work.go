package jobs

import "context"

// Void - результат задач, не возвращающих значения.
type Void = struct{}

// Callable - каноническое представление единицы работы внутри цепочки перехватчиков.
type Callable func(ctx context.Context) (any, error)

// Work - единица работы: Action или Function.
type Work[R any] interface {
	call(ctx context.Context) (R, error)
}

// Action - работа без результата.
type Action func(ctx context.Context) error

func (a Action) call(ctx context.Context) (Void, error) {
	return Void{}, a(ctx)
}

// Function - работа, возвращающая значение.
type Function[R any] func(ctx context.Context) (R, error)

func (f Function[R]) call(ctx context.Context) (R, error) {
	return f(ctx)
}

// Func приводит функцию к Function с выводом типа результата.
func Func[R any](fn func(ctx context.Context) (R, error)) Function[R] {
	return Function[R](fn)
}

func toCallable[R any](w Work[R]) Callable {
	return func(ctx context.Context) (any, error) {
		return w.call(ctx)
	}
}

func resultAs[R any](v any) R {
	r, _ := v.(R)
	return r
}
