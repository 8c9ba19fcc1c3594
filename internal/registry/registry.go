// Package registry provides a concurrency-safe name-indexed store with
// insertion-order enumeration, used to assemble the ordered schema sets the
// engine selects tools from.
package registry

import (
	"slices"
	"sync"

	"github.com/alphadose/haxmap"
)

type Registry[T any] interface {
	Get(name string) (T, bool)
	// Add stores value under name. Re-adding an existing name shadows the
	// previous value but keeps its original position in the ordering.
	Add(name string, value T)
	Del(name string)
	// Names returns the registered names in first-insertion order.
	Names() []string
	// Values returns the registered values in first-insertion order.
	Values() []T
}

type registry[T any] struct {
	values *haxmap.Map[string, T]

	mu    sync.Mutex
	order []string
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *registry[T]) Add(name string, value T) {
	r.mu.Lock()
	if !slices.Contains(r.order, name) {
		r.order = append(r.order, name)
	}
	r.mu.Unlock()
	r.values.Set(name, value)
}

func (r *registry[T]) Del(name string) {
	r.mu.Lock()
	if i := slices.Index(r.order, name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.mu.Unlock()
	r.values.Del(name)
}

func (r *registry[T]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

func (r *registry[T]) Values() []T {
	names := r.Names()
	values := make([]T, 0, len(names))
	for _, name := range names {
		if v, ok := r.values.Get(name); ok {
			values = append(values, v)
		}
	}
	return values
}
