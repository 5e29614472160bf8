package trading

import "sync"

// pairLocks serializes matching per book segment. Orders on the same
// currency pair, in either direction, contend for one lock, so two
// concurrent placements can never race to fill the same maker.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[string]*sync.Mutex)}
}

// pairKey canonicalizes the unordered currency pair so BUY and SELL takers
// of the same segment share a key.
func pairKey(a, b string) string {
	if a < b {
		return a + "/" + b
	}
	return b + "/" + a
}

// Lock acquires the segment lock and returns its unlock func.
func (l *pairLocks) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
