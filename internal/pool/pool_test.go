package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeConn struct {
	id     int
	closed atomic.Bool
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

func TestAcquireReusesWithinTTL(t *testing.T) {
	var dials atomic.Int32
	p := New(func(ctx context.Context, key Key) (Conn, error) {
		dials.Add(1)
		return &fakeConn{id: int(dials.Load())}, nil
	}, Config{Capacity: 10, TTL: time.Minute})
	defer p.Stop()

	c1, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	c2, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c1 != c2 {
		t.Errorf("expected the same connection to be reused")
	}
	if dials.Load() != 1 {
		t.Errorf("expected exactly one dial, got %d", dials.Load())
	}
}

func TestAcquireEvictsOverCapacity(t *testing.T) {
	var disposed []Key
	var mu sync.Mutex

	p := New(func(ctx context.Context, key Key) (Conn, error) {
		return &fakeConn{}, nil
	}, Config{
		Capacity: 2,
		TTL:      time.Minute,
		OnDispose: func(key Key, conn Conn) {
			mu.Lock()
			disposed = append(disposed, key)
			mu.Unlock()
		},
	})
	defer p.Stop()

	for i := 0; i < 3; i++ {
		if _, err := p.Acquire(context.Background(), Key(fmt.Sprintf("k%d", i))); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}

	if p.Len() != 2 {
		t.Errorf("expected pool length 2, got %d", p.Len())
	}

	p.Clear()
	mu.Lock()
	defer mu.Unlock()
	if len(disposed) != 3 {
		t.Errorf("expected 3 disposals total (1 capacity eviction + 2 at clear), got %d: %v", len(disposed), disposed)
	}
}

func TestAcquireSingleFlight(t *testing.T) {
	var dials atomic.Int32
	start := make(chan struct{})

	p := New(func(ctx context.Context, key Key) (Conn, error) {
		dials.Add(1)
		<-start
		return &fakeConn{}, nil
	}, Config{Capacity: 10, TTL: time.Minute})
	defer p.Stop()

	var wg sync.WaitGroup
	results := make([]Conn, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Acquire(context.Background(), "shared")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			results[i] = c
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(start)
	wg.Wait()

	if dials.Load() != 1 {
		t.Errorf("expected exactly one dial under single-flight, got %d", dials.Load())
	}
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Errorf("expected all callers to receive the same connection")
		}
	}
}

func TestAcquireDialError(t *testing.T) {
	p := New(func(ctx context.Context, key Key) (Conn, error) {
		return nil, fmt.Errorf("boom")
	}, Config{Capacity: 10, TTL: time.Minute})
	defer p.Stop()

	if _, err := p.Acquire(context.Background(), "a"); err == nil {
		t.Fatal("expected dial error to propagate")
	}
	if p.Len() != 0 {
		t.Errorf("expected no entry left behind after a dial failure, got %d", p.Len())
	}
}

func TestDiscardForcesRedial(t *testing.T) {
	var dials atomic.Int32
	p := New(func(ctx context.Context, key Key) (Conn, error) {
		dials.Add(1)
		return &fakeConn{id: int(dials.Load())}, nil
	}, Config{Capacity: 10, TTL: time.Minute})
	defer p.Stop()

	c1, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	p.Discard("a")
	if p.Len() != 0 {
		t.Errorf("expected Discard to remove the entry, got len %d", p.Len())
	}

	c2, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("Acquire after Discard: %v", err)
	}
	if c1 == c2 {
		t.Error("expected a fresh connection after Discard, got the same one back")
	}
	if dials.Load() != 2 {
		t.Errorf("expected a redial after Discard, got %d total dials", dials.Load())
	}
}

func TestDiscardUnknownKeyIsNoop(t *testing.T) {
	p := New(func(ctx context.Context, key Key) (Conn, error) {
		return &fakeConn{}, nil
	}, Config{Capacity: 10, TTL: time.Minute})
	defer p.Stop()

	p.Discard("never-acquired")
	if p.Len() != 0 {
		t.Errorf("expected Discard of an unknown key to be a no-op, got len %d", p.Len())
	}
}
