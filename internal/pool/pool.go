// Package pool implements the bounded LRU connection pool that sits between
// the Toolbox and the MCP Client: upstream connections are opened lazily on
// first use, kept warm for a bounded time, and evicted under either
// capacity or TTL pressure without ever handing two callers racing on the
// same key two separate connections.
package pool

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// Key identifies one pooled connection. Two descriptors that dial the same
// upstream must produce the same Key so the pool can coalesce them.
type Key string

// Factory dials a new connection for key. It is called at most once per key
// at a time, even under concurrent Acquire calls — see the single-flight
// gate in entry.
type Factory func(ctx context.Context, key Key) (Conn, error)

// Conn is anything the pool can hold and eventually dispose of. It is
// satisfied by *mcpclient.Client.
type Conn interface {
	Close() error
}

// DisposeHook is invoked, in its own goroutine, after a Conn is evicted and
// closed. Pool.Clear blocks until every in-flight dispose hook from the
// clear has returned.
type DisposeHook func(key Key, conn Conn)

// Config configures a Pool.
type Config struct {
	// Capacity is the maximum number of live connections held at once.
	// Defaults to 10.
	Capacity int

	// TTL is how long an idle connection survives before it becomes
	// eligible for eviction. Defaults to 30 minutes.
	TTL time.Duration

	// SweepInterval is how often a background sweep checks for
	// TTL-expired entries, independent of lazy expiry-on-access.
	// Defaults to TTL/4.
	SweepInterval time.Duration

	// OnDispose, if set, runs after every eviction (capacity, TTL, or
	// explicit Clear).
	OnDispose DisposeHook

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 10
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = c.TTL / 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type entry struct {
	key       Key
	conn      Conn
	expiresAt time.Time
	elem      *list.Element

	// inflight is non-nil while a Factory call for this key is in
	// progress; concurrent Acquire calls for the same key wait on it
	// instead of invoking the factory a second time.
	inflight chan struct{}
	dialErr  error
}

// Pool is a keyed, bounded, TTL-aware LRU of upstream connections.
type Pool struct {
	cfg     Config
	factory Factory

	mu      sync.Mutex
	entries map[Key]*entry
	order   *list.List // front = most recently used

	disposeWG sync.WaitGroup
	cronJob   *cron.Cron

	metrics metrics
}

type metrics struct {
	size      prometheus.Gauge
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions *prometheus.CounterVec
}

// New constructs a Pool and starts its background TTL sweeper.
func New(factory Factory, cfg Config) *Pool {
	cfg.setDefaults()

	p := &Pool{
		cfg:     cfg,
		factory: factory,
		entries: make(map[Key]*entry),
		order:   list.New(),
		metrics: newMetrics(),
	}

	p.cronJob = cron.New()
	spec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	// A malformed spec only happens if SweepInterval resolved to zero,
	// which setDefaults prevents; the job is skipped defensively anyway.
	if _, err := p.cronJob.AddFunc(spec, p.sweep); err != nil {
		cfg.Logger.Warn("pool: failed to schedule ttl sweep", "error", err)
	} else {
		p.cronJob.Start()
	}

	return p
}

func newMetrics() metrics {
	return metrics{
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toolgate_pool_size", Help: "Current number of live pooled connections.",
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_pool_hits_total", Help: "Acquire calls served by an existing connection.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_pool_misses_total", Help: "Acquire calls that dialed a new connection.",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_pool_evictions_total", Help: "Connections evicted, by reason.",
		}, []string{"reason"}),
	}
}
