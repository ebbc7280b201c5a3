// Package flight coalesces identical image-generation requests so a gallery
// that re-submits the same prompt joins the render already in progress
// instead of paying for a second one. Finished renders are held strongly for
// a TTL and weakly after that, so memory pressure can reclaim old images
// while hot ones stay cheap.
package flight

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"weak"
)

type Cache[K comparable, V any] struct {
	// finished holds completed renders. Each entry keeps a strong reference
	// until its deadline passes, after which only the weak pointer remains.
	finished map[K]*entry[V]
	fmu      *sync.RWMutex

	pending map[K]*job[V]
	pmu     *sync.Mutex

	work func(context.Context, K) (V, error)

	// ttl stores the strong-hold duration in nanoseconds.
	// <= 0 means infinite (never drop the strong reference).
	ttl *atomic.Int64
}

type entry[V any] struct {
	w        weak.Pointer[V]
	strong   *V        // non-nil while within the strong-hold window
	deadline time.Time // zero => infinite
}

type job[V any] struct {
	val  V
	err  error
	done chan struct{}
}

func NewCache[K comparable, V any](work func(context.Context, K) (V, error)) Cache[K, V] {
	var ttl atomic.Int64
	ttl.Store(int64(time.Hour))
	return Cache[K, V]{
		finished: make(map[K]*entry[V]),
		fmu:      new(sync.RWMutex),
		pending:  make(map[K]*job[V]),
		pmu:      new(sync.Mutex),
		work:     work,
		ttl:      &ttl,
	}
}

// Expiry sets the strong-hold duration for future writes.
// d <= 0 keeps a permanent strong reference.
func (p *Cache[K, V]) Expiry(d time.Duration) {
	if d <= 0 {
		p.ttl.Store(0)
		return
	}
	p.ttl.Store(int64(d))
}

// Get returns the cached render for k, joins an in-flight render if one
// exists, or starts the work itself. A caller whose context ends while
// joined stops waiting; the render itself keeps running for the others.
func (p *Cache[K, V]) Get(ctx context.Context, k K) (V, error) {
	p.pmu.Lock()

	if e, ok := p.loadEntry(k); ok {
		if v, ok := p.tryEntry(e); ok {
			p.pmu.Unlock()
			return v, nil
		}
		// The weak value is gone; remove the entry so the miss below recomputes.
		p.fmu.Lock()
		if cur, ok := p.finished[k]; ok && cur == e && e.w.Value() == nil {
			delete(p.finished, k)
		}
		p.fmu.Unlock()
	}

	if pending, ok := p.pending[k]; ok {
		p.pmu.Unlock()
		return p.join(ctx, pending)
	}

	j := &job[V]{done: make(chan struct{})}
	p.pending[k] = j
	p.pmu.Unlock()

	// The render outlives any one waiter's context so joiners still get it.
	j.val, j.err = p.work(context.WithoutCancel(ctx), k)
	if j.err == nil {
		p.storeEntry(k, j.val)
	}

	p.pmu.Lock()
	close(j.done)
	delete(p.pending, k)
	p.pmu.Unlock()

	return j.val, j.err
}

// Force always re-renders, waiting out any in-flight job for k first.
func (p *Cache[K, V]) Force(ctx context.Context, k K) (V, error) {
	var j *job[V]
	for {
		p.pmu.Lock()
		if existing, ok := p.pending[k]; ok {
			p.pmu.Unlock()
			if _, err := p.join(ctx, existing); err != nil && ctx.Err() != nil {
				var zero V
				return zero, err
			}
			continue
		}
		newJob := &job[V]{done: make(chan struct{})}
		p.pending[k] = newJob
		j = newJob
		p.pmu.Unlock()
		break
	}

	j.val, j.err = p.work(context.WithoutCancel(ctx), k)
	if j.err == nil {
		p.storeEntry(k, j.val)
	}

	p.pmu.Lock()
	close(j.done)
	delete(p.pending, k)
	p.pmu.Unlock()

	return j.val, j.err
}

func (p *Cache[K, V]) join(ctx context.Context, j *job[V]) (V, error) {
	select {
	case <-j.done:
		return j.val, j.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// --- internals ---

func (p *Cache[K, V]) ttlDur() time.Duration {
	return time.Duration(p.ttl.Load())
}

func (p *Cache[K, V]) loadEntry(k K) (*entry[V], bool) {
	p.fmu.RLock()
	e, ok := p.finished[k]
	p.fmu.RUnlock()
	if !ok {
		return nil, false
	}

	// If the strong-hold window elapsed, drop the strong pointer.
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		p.fmu.Lock()
		if cur, ok := p.finished[k]; ok && cur == e && e.strong != nil && time.Now().After(e.deadline) {
			e.strong = nil
		}
		p.fmu.Unlock()
	}
	return e, true
}

func (p *Cache[K, V]) tryEntry(e *entry[V]) (V, bool) {
	if vp := e.w.Value(); vp != nil {
		return *vp, true
	}
	var zero V
	return zero, false
}

func (p *Cache[K, V]) storeEntry(k K, val V) {
	// Dedicated heap cell so the weak pointer has a stable address.
	v := new(V)
	*v = val

	e := &entry[V]{w: weak.Make(v)}
	if d := p.ttlDur(); d > 0 {
		e.deadline = time.Now().Add(d)
		e.strong = v
	} else {
		e.deadline = time.Time{}
		e.strong = v
	}

	p.fmu.Lock()
	p.finished[k] = e
	p.fmu.Unlock()
}
