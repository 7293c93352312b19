// Package cache holds the LRU used to keep per-user budget sessions and the
// janitor that expires idle entries.
package cache

import (
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)

// Cleaner is a cache that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
	Size() int
}

// Janitor periodically calls CleanExpired on registered caches.
type Janitor struct {
	mu       sync.Mutex
	caches   []Cleaner
	stop     chan struct{}
	done     chan struct{}
	onReport func(cleaned int)
}

func NewJanitor() *Janitor {
	return &Janitor{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	j.caches = append(j.caches, c)
	j.mu.Unlock()
}

// OnReport is called after each sweep that removed something.
func (j *Janitor) OnReport(fn func(cleaned int)) {
	j.mu.Lock()
	j.onReport = fn
	j.mu.Unlock()
}

// Start begins sweeping every interval until Stop.
func (j *Janitor) Start(interval time.Duration) {
	go j.run(interval)
}

// Sweep runs one pass immediately and returns how many entries were removed.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	report := j.onReport
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	if total > 0 && report != nil {
		report(total)
	}
	return total
}

func (j *Janitor) run(interval time.Duration) {
	defer close(j.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-j.stop:
			return
		}
	}
}

// Stop ends the sweep loop and waits for it. Call only after Start.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
