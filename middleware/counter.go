package middleware

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/broady/dynproxy"
)

// CallStats are the counters of one member.
type CallStats struct {
	Calls  int64
	Errors int64
	Total  time.Duration
}

// CallCounter counts calls per member. It is safe for concurrent use and may
// be shared between proxies.
type CallCounter struct {
	mu    sync.Mutex
	stats map[string]CallStats
}

// NewCallCounter returns an empty counter.
func NewCallCounter() *CallCounter {
	return &CallCounter{stats: make(map[string]CallStats)}
}

// Interceptor returns the interceptor feeding c. Calls are keyed by the
// member's diagnostic full name.
func (c *CallCounter) Interceptor() dynproxy.Interceptor {
	return dynproxy.InterceptorFunc(func(inv *dynproxy.Invocation, next dynproxy.Handler) (any, error) {
		start := time.Now()
		res, err := next(inv)
		c.record(inv.Name(), time.Since(start), err)
		return res, err
	})
}

func (c *CallCounter) record(name string, d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats[name]
	s.Calls++
	s.Total += d
	if err != nil {
		s.Errors++
	}
	c.stats[name] = s
}

// Get returns the counters for the member with the given full name.
func (c *CallCounter) Get(name string) CallStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats[name]
}

// Snapshot returns a copy of all counters.
func (c *CallCounter) Snapshot() map[string]CallStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.stats)
}

// Reset clears all counters.
func (c *CallCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.stats)
}

// TimeoutInterceptor bounds the rest of the chain with a deadline of d.
// Targets and bodies see the deadline through their context argument. Calls
// still running when the deadline passes are not abandoned, but a result
// arriving after it is replaced by a [dynproxy.CodeCanceled] error.
func TimeoutInterceptor(d time.Duration) dynproxy.Interceptor {
	return dynproxy.InterceptorFunc(func(inv *dynproxy.Invocation, next dynproxy.Handler) (any, error) {
		parent := inv.Context()
		ctx, cancel := context.WithTimeout(parent, d)
		defer cancel()
		inv.WithContext(ctx)
		res, err := next(inv)
		inv.WithContext(parent)
		if err == nil && ctx.Err() != nil {
			return nil, dynproxy.Errorf(dynproxy.CodeCanceled, "%s: %v", inv.Name(), ctx.Err())
		}
		return res, err
	})
}
