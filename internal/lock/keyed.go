// Package lock реализует взаимное исключение по ключу (тендер, пара тендер+покупатель).
package lock

import (
	"context"
	"sync"
)

// Keyed выдает не более одного владельца на ключ.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	token chan struct{}
	refs  int
}

// NewKeyed создает новый экземпляр Keyed.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*entry)}
}

// Lock захватывает ключ и возвращает функцию освобождения.
// Ожидание прерывается отменой контекста.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.token <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.token
			k.release(key, e)
		})
	}, nil
}

// Held возвращает количество ключей, которые сейчас захвачены или ожидаются.
func (k *Keyed) Held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *Keyed) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
