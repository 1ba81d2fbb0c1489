// Package query is the read cache over the contract client adapter. It owns
// staleness policy, same-key coalescing, and scoped invalidation; consumers
// get decoded entities plus freshness metadata and never see raw records.
package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"vitalia/internal/chain"
	"vitalia/internal/domain"
	"vitalia/internal/query/store"
	"vitalia/pkg/platform/sentinel"
)

// DefaultStalenessWindow is how long a successful read stays fresh.
const DefaultStalenessWindow = 30 * time.Second

// backgroundTimeout bounds refreshes that no consumer is waiting on.
const backgroundTimeout = 30 * time.Second

var (
	cacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalia_query_reads_total",
		Help: "Query reads by cache outcome",
	}, []string{"outcome"}) // hit, stale, miss

	coalescedReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vitalia_query_coalesced_reads_total",
		Help: "Reads that attached to an in-flight fetch instead of issuing a transport call",
	})

	invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalia_query_invalidations_total",
		Help: "Scoped cache invalidations",
	}, []string{"scope"})
)

// State is the lifecycle of one tracked query key.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Adapter is the slice of the chain client the query layer reads through.
type Adapter interface {
	ReadListings(ctx context.Context, sel chain.Selector) ([][]any, error)
	Categories(ctx context.Context) ([]string, error)
	ReadProfile(ctx context.Context, account domain.Address) ([]any, error)
	ReadStats(ctx context.Context, account domain.Address) ([]any, error)
	ProfilesByExpertise(ctx context.Context, tag string) ([]domain.Address, error)
	ActiveProfiles(ctx context.Context) ([]domain.Address, error)
	ProfilesByOnSiteStatus(ctx context.Context, onSite bool) ([]domain.Address, error)
}

// Client tracks queries against the registries.
type Client struct {
	adapter Adapter
	store   store.Store
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	group      singleflight.Group
	background sync.WaitGroup

	mu      sync.Mutex
	tracked map[string]*trackedQuery
}

type trackedQuery struct {
	state State
	err   error
	fetch fetchFn
}

// fetchFn performs the transport read for a key and returns the encoded
// value to cache.
type fetchFn func(ctx context.Context) ([]byte, error)

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithStalenessWindow overrides the freshness interval.
func WithStalenessWindow(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithClock overrides the freshness clock. Tests use it to cross the
// staleness window without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient builds a query layer over the adapter and cache store.
func NewClient(adapter Adapter, st store.Store, opts ...Option) (*Client, error) {
	if adapter == nil {
		return nil, errors.New("adapter is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	c := &Client{
		adapter: adapter,
		store:   st,
		ttl:     DefaultStalenessWindow,
		now:     time.Now,
		tracked: make(map[string]*trackedQuery),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StateOf reports the lifecycle state of a query key. Keys never requested
// are idle.
func (c *Client) StateOf(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.tracked[key]; ok {
		return q.state
	}
	return StateIdle
}

// LastError returns the error recorded for a key in the error state.
func (c *Client) LastError(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.tracked[key]; ok {
		return q.err
	}
	return nil
}

// Drain waits for in-flight background refreshes. Called on shutdown.
func (c *Client) Drain() {
	c.background.Wait()
}

// cached is one resolved read: the encoded value plus freshness metadata.
type cached struct {
	value     []byte
	fetchedAt time.Time
	stale     bool
}

// get serves a key from cache within the staleness window, serves stale data
// while revalidating in the background past it, and blocks only when there is
// nothing to serve. Concurrent callers for the same key share one transport
// call.
func (c *Client) get(ctx context.Context, key string, fetch fetchFn) (cached, error) {
	c.register(key, fetch)

	entry, err := c.store.Get(ctx, key)
	if err == nil {
		age := c.now().Sub(entry.FetchedAt)
		if !entry.FetchedAt.IsZero() && age < c.ttl {
			cacheReads.WithLabelValues("hit").Inc()
			return cached{value: entry.Value, fetchedAt: entry.FetchedAt}, nil
		}
		cacheReads.WithLabelValues("stale").Inc()
		c.refreshAsync(key, fetch)
		return cached{value: entry.Value, fetchedAt: entry.FetchedAt, stale: true}, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return cached{}, err
	}

	cacheReads.WithLabelValues("miss").Inc()
	return c.doFetch(ctx, key, fetch, false)
}

// refetch forces a blocking transport read regardless of freshness.
func (c *Client) refetch(ctx context.Context, key string, fetch fetchFn) (cached, error) {
	c.register(key, fetch)
	return c.doFetch(ctx, key, fetch, true)
}

func (c *Client) doFetch(ctx context.Context, key string, fetch fetchFn, force bool) (cached, error) {
	type fetched struct {
		value     []byte
		fetchedAt time.Time
	}

	result, err, shared := c.group.Do(key, func() (any, error) {
		// A caller that queued behind a completed flight may find the
		// store already fresh; skip the duplicate transport call.
		if !force {
			if entry, err := c.store.Get(ctx, key); err == nil {
				age := c.now().Sub(entry.FetchedAt)
				if !entry.FetchedAt.IsZero() && age < c.ttl {
					return fetched{value: entry.Value, fetchedAt: entry.FetchedAt}, nil
				}
			}
		}

		c.setState(key, StateLoading, nil)
		value, err := fetch(ctx)
		if err != nil {
			c.setState(key, StateError, err)
			return nil, err
		}

		now := c.now()
		if err := c.store.Set(ctx, key, store.Entry{Value: value, FetchedAt: now}); err != nil {
			c.setState(key, StateError, err)
			return nil, err
		}
		c.setState(key, StateReady, nil)
		return fetched{value: value, fetchedAt: now}, nil
	})
	if shared {
		coalescedReads.Inc()
	}
	if err != nil {
		return cached{}, err
	}

	f := result.(fetched)
	return cached{value: f.value, fetchedAt: f.fetchedAt}, nil
}

// refreshAsync revalidates a stale key without blocking the caller. The
// result is written to the store; the caller already has the stale value.
func (c *Client) refreshAsync(key string, fetch fetchFn) {
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if _, err := c.doFetch(ctx, key, fetch, true); err != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "background revalidation failed",
				"key", key,
				"error", err,
			)
		}
	}()
}

// invalidateKey marks a key stale and kicks a background refetch so the next
// consumer access sees post-write state without a refetch storm.
func (c *Client) invalidateKey(ctx context.Context, key string) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		return // nothing cached, nothing to invalidate
	}
	entry.FetchedAt = time.Time{}
	if err := c.store.Set(ctx, key, entry); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "failed to mark key stale", "key", key, "error", err)
		}
		return
	}

	c.mu.Lock()
	var fetch fetchFn
	if q, ok := c.tracked[key]; ok {
		fetch = q.fetch
	}
	c.mu.Unlock()
	if fetch != nil {
		c.refreshAsync(key, fetch)
	}
}

func (c *Client) register(key string, fetch fetchFn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.tracked[key]; ok {
		q.fetch = fetch
		return
	}
	c.tracked[key] = &trackedQuery{state: StateIdle, fetch: fetch}
}

func (c *Client) setState(key string, state State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.tracked[key]
	if !ok {
		q = &trackedQuery{}
		c.tracked[key] = q
	}
	q.state = state
	q.err = err
}
