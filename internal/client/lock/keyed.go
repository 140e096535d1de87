// Package lock provides in-process mutual exclusion keyed by entity ID.
package lock

import "sync"

// Keyed сериализует работу с одной сущностью между путями записи
// (очередь, executor, realtime merge). Мьютексы создаются по требованию
// и удаляются, когда их больше никто не держит и не ждет.
type Keyed struct {
	locks map[string]*entry
	mu    sync.Mutex
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyed создает пустой набор блокировок
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*entry)}
}

// Lock захватывает блокировку key и возвращает функцию освобождения
func (k *Keyed) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

// Len возвращает количество ключей, которые сейчас заняты или ожидаются
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
