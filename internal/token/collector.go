// Package token implements the two-sided rendezvous used to hand a client
// over between endpoints. One side parks a pending client under a token, the
// other side parks a payload under the same token; whichever arrives second
// triggers the match. Both sides time out independently.
package token

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout is how long either side waits for its counterpart.
const DefaultTimeout = 10 * time.Second

// Handler receives rendezvous outcomes. Match transfers ownership of both
// values; the timeout callbacks keep ownership of the present side only.
type Handler[C, P any] interface {
	TokenMatched(client C, payload P)
	DeletePendingClient(client C)
	DeletePendingConnect(payload P)
}

type pendingClient[C any] struct {
	client   C
	deadline time.Time
}

type pendingConnect[P any] struct {
	payload  P
	deadline time.Time
}

// Collector matches pending clients with pending payloads by token.
// Matching is at-most-once: both entries are removed before the handler
// is invoked.
type Collector[C, P any] struct {
	handler Handler[C, P]
	timeout time.Duration

	mu       sync.Mutex
	clients  map[string]pendingClient[C]
	connects map[string]pendingConnect[P]
}

// NewCollector creates a collector with the given timeout per side.
// A non-positive timeout falls back to DefaultTimeout.
func NewCollector[C, P any](handler Handler[C, P], timeout time.Duration) *Collector[C, P] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Collector[C, P]{
		handler:  handler,
		timeout:  timeout,
		clients:  map[string]pendingClient[C]{},
		connects: map[string]pendingConnect[P]{},
	}
}

// AddPendingClient parks a client under the token, or fires the match if the
// payload side already arrived.
func (c *Collector[C, P]) AddPendingClient(token string, client C) {
	c.mu.Lock()
	if pc, ok := c.connects[token]; ok {
		delete(c.connects, token)
		c.mu.Unlock()
		c.handler.TokenMatched(client, pc.payload)
		return
	}
	c.clients[token] = pendingClient[C]{client: client, deadline: time.Now().Add(c.timeout)}
	c.mu.Unlock()
}

// AddPendingConnect parks a payload under the token, or fires the match if
// the client side already arrived.
func (c *Collector[C, P]) AddPendingConnect(token string, payload P) {
	c.mu.Lock()
	if pc, ok := c.clients[token]; ok {
		delete(c.clients, token)
		c.mu.Unlock()
		c.handler.TokenMatched(pc.client, payload)
		return
	}
	c.connects[token] = pendingConnect[P]{payload: payload, deadline: time.Now().Add(c.timeout)}
	c.mu.Unlock()
}

// RemovePendingClient withdraws a parked client (disconnect, logout).
// Returns false when no entry held that client.
func (c *Collector[C, P]) RemovePendingClient(match func(C) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for tok, pc := range c.clients {
		if match(pc.client) {
			delete(c.clients, tok)
			return true
		}
	}
	return false
}

// Run sweeps expired entries until the context is cancelled.
func (c *Collector[C, P]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

func (c *Collector[C, P]) sweep(now time.Time) {
	var expiredClients []C
	var expiredConnects []P

	c.mu.Lock()
	for tok, pc := range c.clients {
		if now.After(pc.deadline) {
			delete(c.clients, tok)
			expiredClients = append(expiredClients, pc.client)
		}
	}
	for tok, pc := range c.connects {
		if now.After(pc.deadline) {
			delete(c.connects, tok)
			expiredConnects = append(expiredConnects, pc.payload)
		}
	}
	c.mu.Unlock()

	for _, cl := range expiredClients {
		c.handler.DeletePendingClient(cl)
	}
	for _, p := range expiredConnects {
		c.handler.DeletePendingConnect(p)
	}
}

// PendingCounts reports current entries per side, for diagnostics and tests.
func (c *Collector[C, P]) PendingCounts() (clients, connects int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients), len(c.connects)
}
