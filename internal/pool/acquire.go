package pool

import (
	"context"
	"fmt"
	"time"
)

// Acquire returns the live connection for key, dialing one via the Factory
// if none exists or the existing one has expired. Concurrent Acquire calls
// for the same key block on the first caller's dial rather than racing the
// Factory — this is the pool's single-flight guarantee.
func (p *Pool) Acquire(ctx context.Context, key Key) (Conn, error) {
	p.mu.Lock()
	if e, ok := p.entries[key]; ok {
		if e.inflight != nil {
			// Another caller is already dialing this key; wait for it
			// without holding the lock.
			ch := e.inflight
			p.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			p.mu.Lock()
			e, ok = p.entries[key]
			if !ok {
				p.mu.Unlock()
				return p.Acquire(ctx, key)
			}
			if e.dialErr != nil {
				p.mu.Unlock()
				return nil, e.dialErr
			}
			p.touch(e)
			p.mu.Unlock()
			p.metrics.hits.Inc()
			return e.conn, nil
		}

		if time.Now().Before(e.expiresAt) {
			p.touch(e)
			p.mu.Unlock()
			p.metrics.hits.Inc()
			return e.conn, nil
		}

		// Expired: remove it now so a concurrent caller dials fresh
		// rather than reusing a connection we're about to close.
		p.removeLocked(e, "ttl")
	}

	// No usable entry: claim the single-flight slot and dial outside the
	// lock.
	e := &entry{key: key, inflight: make(chan struct{})}
	p.entries[key] = e
	p.mu.Unlock()

	conn, err := p.factory(ctx, key)

	p.mu.Lock()
	if err != nil {
		e.dialErr = err
		close(e.inflight)
		delete(p.entries, key)
		p.mu.Unlock()
		return nil, fmt.Errorf("pool: dial %q: %w", key, err)
	}

	e.conn = conn
	e.expiresAt = time.Now().Add(p.cfg.TTL)
	e.elem = p.order.PushFront(e)
	close(e.inflight)
	e.inflight = nil
	p.evictOverCapacityLocked()
	size := len(p.entries)
	p.mu.Unlock()

	p.metrics.misses.Inc()
	p.metrics.size.Set(float64(size))
	return conn, nil
}

// touch marks e most-recently-used and extends its TTL from now. Must be
// called with p.mu held.
func (p *Pool) touch(e *entry) {
	p.order.MoveToFront(e.elem)
	e.expiresAt = time.Now().Add(p.cfg.TTL)
}

// evictOverCapacityLocked evicts least-recently-used entries until the pool
// is at or under capacity. Must be called with p.mu held.
func (p *Pool) evictOverCapacityLocked() {
	for len(p.entries) > p.cfg.Capacity {
		back := p.order.Back()
		if back == nil {
			return
		}
		p.removeLocked(back.Value.(*entry), "capacity")
	}
}

// removeLocked unlinks e from the pool and schedules its disposal. Must be
// called with p.mu held.
func (p *Pool) removeLocked(e *entry, reason string) {
	delete(p.entries, e.key)
	if e.elem != nil {
		p.order.Remove(e.elem)
	}
	p.metrics.evictions.WithLabelValues(reason).Inc()
	p.dispose(e.key, e.conn)
}

// dispose closes conn and runs the configured OnDispose hook in its own
// goroutine, tracked so Clear can wait for every in-flight disposal.
func (p *Pool) dispose(key Key, conn Conn) {
	if conn == nil {
		return
	}
	p.disposeWG.Add(1)
	go func() {
		defer p.disposeWG.Done()
		if err := conn.Close(); err != nil {
			p.cfg.Logger.Warn("pool: error closing connection", "key", key, "error", err)
		}
		if p.cfg.OnDispose != nil {
			p.cfg.OnDispose(key, conn)
		}
	}()
}

// sweep evicts every TTL-expired entry. Called by the background cron job
// in addition to the lazy expiry check in Acquire, so an idle pool still
// sheds cold connections between calls.
func (p *Pool) sweep() {
	now := time.Now()
	var expired []*entry

	p.mu.Lock()
	for _, e := range p.entries {
		if e.inflight == nil && now.After(e.expiresAt) {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		p.removeLocked(e, "ttl")
	}
	size := len(p.entries)
	p.mu.Unlock()

	if len(expired) > 0 {
		p.metrics.size.Set(float64(size))
	}
}

// Discard evicts and closes the connection held for key, if any, so the
// next Acquire redials rather than handing back a connection known to be
// broken. Callers use this after a transport error bubbles out of a call
// made on a connection they acquired.
func (p *Pool) Discard(key Key) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok || e.inflight != nil {
		p.mu.Unlock()
		return
	}
	p.removeLocked(e, "discarded")
	size := len(p.entries)
	p.mu.Unlock()
	p.metrics.size.Set(float64(size))
}

// Len returns the current number of live entries, including any still
// mid-dial.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Clear evicts every entry and blocks until every disposal this call
// triggered has completed.
func (p *Pool) Clear() {
	p.mu.Lock()
	all := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.inflight == nil {
			all = append(all, e)
		}
	}
	for _, e := range all {
		p.removeLocked(e, "clear")
	}
	p.mu.Unlock()

	p.disposeWG.Wait()
	p.metrics.size.Set(0)
}

// Stop halts the background TTL sweeper. Call it once, at shutdown,
// before Clear.
func (p *Pool) Stop() {
	if p.cronJob != nil {
		ctx := p.cronJob.Stop()
		<-ctx.Done()
	}
}
