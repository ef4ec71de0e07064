package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory keeps counters in process. It is safe for concurrent use; each
// credential has its own lock.
type Memory struct {
	entries sync.Map // map[string]*memEntry
}

type memEntry struct {
	mu     sync.Mutex
	minute window
	hour   window
	dead   bool // swept; callers holding it must reload
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) entry(credential string) *memEntry {
	if e, ok := m.entries.Load(credential); ok {
		return e.(*memEntry)
	}
	e, _ := m.entries.LoadOrStore(credential, &memEntry{})
	return e.(*memEntry)
}

// Admit implements Store.
func (m *Memory) Admit(_ context.Context, credential string, now time.Time, l Limits) (Decision, error) {
	e := m.entry(credential)
	e.mu.Lock()
	for e.dead {
		e.mu.Unlock()
		e = m.entry(credential)
		e.mu.Lock()
	}
	defer e.mu.Unlock()

	e.minute.roll(now, Minute)
	e.hour.roll(now, Hour)
	allowed := e.minute.count < l.PerMinute && e.hour.count < l.PerHour
	if allowed {
		e.minute.count++
		e.hour.count++
	}
	return decide(now, l, allowed, e.minute, e.hour), nil
}

// Peek implements Store.
func (m *Memory) Peek(_ context.Context, credential string, now time.Time, l Limits) (Quota, error) {
	var minute, hour window
	if v, ok := m.entries.Load(credential); ok {
		e := v.(*memEntry)
		e.mu.Lock()
		minute, hour = e.minute, e.hour
		e.mu.Unlock()
	}
	minute.roll(now, Minute)
	hour.roll(now, Hour)
	return decide(now, l, true, minute, hour).Quota, nil
}

// Len returns the number of tracked credentials.
func (m *Memory) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep forgets credentials whose windows have both expired and returns how
// many were removed.
func (m *Memory) Sweep(now time.Time) int {
	n := 0
	m.entries.Range(func(k, v any) bool {
		e := v.(*memEntry)
		e.mu.Lock()
		idle := !now.Before(e.minute.reset) && !now.Before(e.hour.reset)
		if idle {
			e.dead = true
			m.entries.CompareAndDelete(k, v)
			n++
		}
		e.mu.Unlock()
		return true
	})
	return n
}

// RunJanitor calls Sweep every interval until ctx is done.
func (m *Memory) RunJanitor(ctx context.Context, interval time.Duration, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(now())
		}
	}
}
