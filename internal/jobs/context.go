package jobs

import (
	"iter"
	"reflect"
	"sync"
)

// ExecutionContext - набор пар ключ/значение, передаваемый вместе с задачей.
// Значение nil эквивалентно отсутствию ключа.
type ExecutionContext struct {
	mu     sync.RWMutex
	values map[any]any
}

// NewExecutionContext создает пустой контекст.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{values: make(map[any]any)}
}

// CopyContext возвращает независимую копию src. Для nil возвращается пустой контекст.
func CopyContext(src *ExecutionContext) *ExecutionContext {
	dst := NewExecutionContext()
	if src == nil {
		return dst
	}
	src.mu.RLock()
	defer src.mu.RUnlock()
	for k, v := range src.values {
		dst.values[k] = v
	}
	return dst
}

// Get возвращает значение по ключу.
func (c *ExecutionContext) Get(key any) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set сохраняет значение; nil удаляет ключ.
func (c *ExecutionContext) Set(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value == nil {
		delete(c.values, key)
		return
	}
	c.values[key] = value
}

// Clear удаляет все значения.
func (c *ExecutionContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.values)
}

// Len возвращает количество присутствующих значений.
func (c *ExecutionContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// All возвращает итератор по присутствующим значениям. Каждый вызов
// создает новый итератор по снимку текущего состояния.
func (c *ExecutionContext) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		c.mu.RLock()
		snapshot := make(map[any]any, len(c.values))
		for k, v := range c.values {
			snapshot[k] = v
		}
		c.mu.RUnlock()

		for k, v := range snapshot {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Equal сообщает, совпадает ли содержимое двух контекстов.
func (c *ExecutionContext) Equal(other *ExecutionContext) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c == other {
		return true
	}
	a := CopyContext(c)
	b := CopyContext(other)
	if len(a.values) != len(b.values) {
		return false
	}
	for k, v := range a.values {
		if ov, ok := b.values[k]; !ok || !reflect.DeepEqual(ov, v) {
			return false
		}
	}
	return true
}
