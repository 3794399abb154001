package dispatcher

import (
	"reflect"

	"github.com/morezero/valuestore/pkg/handler"
	"github.com/morezero/valuestore/pkg/persisted"
)

// Typed wraps a dispatcher whose declared type is T.
type Typed[T any] struct {
	d *Dispatcher
	s persisted.Serializer
}

// NewTyped wraps d. Values are built with persisted.DefaultSerializer.
func NewTyped[T any](d *Dispatcher) *Typed[T] {
	return &Typed[T]{d: d, s: persisted.DefaultSerializer{}}
}

// Dispatcher returns the wrapped dispatcher.
func (t *Typed[T]) Dispatcher() *Dispatcher { return t.d }

func (t *Typed[T]) Serialize(v T) persisted.Data {
	return t.d.Serialize(v, t.s)
}

// Deserialize reports false when no value could be reconstructed or the
// value is not a T.
func (t *Typed[T]) Deserialize(data persisted.Data) (T, bool) {
	var zero T
	v, ok := t.d.Deserialize(data)
	if !ok {
		return zero, false
	}
	if tv, ok := v.(T); ok {
		return tv, true
	}
	var out T
	if v == nil || !handler.Assign(reflect.ValueOf(&out).Elem(), v) {
		return zero, false
	}
	return out, true
}
