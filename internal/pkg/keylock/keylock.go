// Package keylock serializes work per string key, e.g. per customer number.
package keylock

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key. Entries are dropped once no goroutine
// holds or waits on them, so the table only grows with concurrent keys.
type Locker struct {
	entries *xsync.MapOf[string, *entry]
}

func New() *Locker {
	return &Locker{entries: xsync.NewMapOf[string, *entry]()}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *Locker) Lock(key string) (unlock func()) {
	e, _ := l.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			old = &entry{}
		}
		old.refs++
		return old, false
	})

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
				if !loaded {
					return old, true
				}
				old.refs--
				return old, old.refs <= 0
			})
		})
	}
}

// Len reports how many keys are currently held or awaited.
func (l *Locker) Len() int {
	return l.entries.Size()
}
