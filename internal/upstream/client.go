// Package upstream ties a single provider call to the health bookkeeping of
// the key it ran with. Each Do acquires a key, builds a provider client for
// it, runs the caller's operation and reports exactly one outcome.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ferro-labs/genai-gateway/internal/keypool"
	"github.com/ferro-labs/genai-gateway/internal/logging"
	"github.com/ferro-labs/genai-gateway/internal/metrics"
	"github.com/ferro-labs/genai-gateway/providers"
)

// Options is the static provider configuration applied to every call.
type Options struct {
	RoutingMode string
	BaseURL     string
	APIVersion  string
	Project     string
	Location    string
}

// Factory builds a provider client for one key.
type Factory func(cfg providers.ClientConfig) (providers.Client, error)

// GeminiFactory is the default Factory.
func GeminiFactory(cfg providers.ClientConfig) (providers.Client, error) {
	return providers.NewGemini(cfg)
}

// Call is what an Operation receives: a client bound to the acquired key and
// that key's id (for logging only).
type Call struct {
	Provider providers.Client
	KeyID    string
}

// Operation performs one provider call. It must not retry internally; retries
// belong to the caller as separate Do calls.
type Operation func(ctx context.Context, call Call) error

// Client is the provider client wrapper. It is safe for concurrent use.
type Client struct {
	pool    *keypool.Pool
	opts    Options
	factory Factory
	now     func() time.Time
}

// New creates a wrapper over pool. A nil factory selects GeminiFactory.
func New(pool *keypool.Pool, opts Options, factory Factory) *Client {
	if factory == nil {
		factory = GeminiFactory
	}
	if opts.RoutingMode == "" {
		opts.RoutingMode = providers.RoutingGeminiAPI
	}
	return &Client{pool: pool, opts: opts, factory: factory, now: time.Now}
}

// WithClock replaces the wrapper's clock; used by tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Pool returns the underlying key pool.
func (c *Client) Pool() *keypool.Pool { return c.pool }

// Do runs op with a freshly acquired key. Acquisition errors are returned as
// is and nothing is reported. Otherwise the key is reported healthy when op
// returns nil and put into cooldown when it fails, and op's error is returned
// unchanged. A panicking op is reported as a failure before the panic
// continues.
func (c *Client) Do(ctx context.Context, op Operation) error {
	lease, err := c.pool.Acquire(c.now())
	if err != nil {
		if errors.Is(err, keypool.ErrNoKeysAvailable) {
			metrics.PoolExhausted.Inc()
		}
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			c.report(ctx, lease.KeyID, fmt.Errorf("provider operation panicked: %v", rec))
			panic(rec)
		}
	}()

	err = c.run(ctx, lease, op)
	c.report(ctx, lease.KeyID, err)
	return err
}

// report records the single outcome of one acquired key.
func (c *Client) report(ctx context.Context, keyID string, err error) {
	if err != nil {
		c.pool.ReportFailure(keyID, c.now())
		metrics.KeyOutcomes.WithLabelValues(keyID, "failure").Inc()
		logging.FromContext(ctx).Warn("provider call failed",
			"key_id", keyID,
			"cooldown_ms", c.pool.Cooldown().Milliseconds(),
			"error", err.Error(),
		)
	} else {
		c.pool.ReportSuccess(keyID)
		metrics.KeyOutcomes.WithLabelValues(keyID, "success").Inc()
	}
	c.publishPoolState()
}

func (c *Client) run(ctx context.Context, lease keypool.Lease, op Operation) error {
	p, err := c.factory(providers.ClientConfig{
		APIKey:      lease.APIKey,
		RoutingMode: c.opts.RoutingMode,
		BaseURL:     c.opts.BaseURL,
		APIVersion:  c.opts.APIVersion,
		Project:     c.opts.Project,
		Location:    c.opts.Location,
	})
	if err != nil {
		return err
	}
	return op(ctx, Call{Provider: p, KeyID: lease.KeyID})
}

func (c *Client) publishPoolState() {
	snap := c.pool.Snapshot(c.now())
	metrics.KeysAvailable.Set(float64(snap.Available))
	for _, k := range snap.Keys {
		metrics.KeyCooldown.WithLabelValues(k.KeyID).Set(k.CooldownRemaining.Seconds())
	}
}

// Run is Do for operations that produce a value; the value is returned
// unmodified on success.
func Run[T any](ctx context.Context, c *Client, fn func(ctx context.Context, call Call) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, func(ctx context.Context, call Call) error {
		v, err := fn(ctx, call)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// ConfigSnapshot is the credential-free view of Options used by diagnostics.
type ConfigSnapshot struct {
	RoutingMode        string
	EndpointOverride   string
	APIVersionOverride string
}

// ConfigSnapshot returns the static provider configuration.
func (c *Client) ConfigSnapshot() ConfigSnapshot {
	return ConfigSnapshot{
		RoutingMode:        c.opts.RoutingMode,
		EndpointOverride:   c.opts.BaseURL,
		APIVersionOverride: c.opts.APIVersion,
	}
}
