package kvstore

import (
	"context"
	"sync"
)

// ObservableStore decorates a Store and notifies watchers after every successful
// Set or Delete. Notifications run synchronously on the writing goroutine, outside
// any store lock.
type ObservableStore struct {
	Store

	mu       sync.RWMutex
	nextID   int
	watchers map[int]func(key string, value []byte)
}

// NewObservableStore wraps s.
func NewObservableStore(s Store) *ObservableStore {
	return &ObservableStore{Store: s, watchers: make(map[int]func(string, []byte))}
}

// Watch registers fn. The returned func removes it.
func (o *ObservableStore) Watch(fn func(key string, value []byte)) (stop func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.watchers[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.watchers, id)
			o.mu.Unlock()
		})
	}
}

func (o *ObservableStore) Set(ctx context.Context, key string, value []byte) error {
	if err := o.Store.Set(ctx, key, value); err != nil {
		return err
	}
	o.notify(key, value)
	return nil
}

func (o *ObservableStore) Delete(ctx context.Context, key string) error {
	if err := o.Store.Delete(ctx, key); err != nil {
		return err
	}
	o.notify(key, nil)
	return nil
}

func (o *ObservableStore) notify(key string, value []byte) {
	o.mu.RLock()
	fns := make([]func(string, []byte), 0, len(o.watchers))
	for _, fn := range o.watchers {
		fns = append(fns, fn)
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn(key, append([]byte(nil), value...))
	}
}
