package web

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// idempotencyCache remembers the response sent for a client supplied request
// key so a retried request gets the same answer without being applied twice.
type idempotencyCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]*idempotentResponse
	lastSweep time.Time
}

type idempotentResponse struct {
	ready   chan struct{} // closed once status and body are set
	status  int
	body    []byte
	expires time.Time
}

func newIdempotencyCache(ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{
		ttl:     ttl,
		entries: map[string]*idempotentResponse{},
	}
}

// claim returns the entry for key. When owned is true the caller is the first
// to use the key and must call complete or release, otherwise it must wait
// on entry.ready and replay the stored response.
func (c *idempotencyCache) claim(key string, now time.Time) (entry *idempotentResponse, owned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) > c.ttl {
		for k, v := range c.entries {
			if isReady(v) && now.After(v.expires) {
				delete(c.entries, k)
			}
		}
		c.lastSweep = now
	}

	if v, ok := c.entries[key]; ok && (!isReady(v) || now.Before(v.expires)) {
		return v, false
	}

	entry = &idempotentResponse{ready: make(chan struct{})}
	c.entries[key] = entry

	return entry, true
}

// complete stores the response of an owned entry and wakes up the waiters.
func (c *idempotencyCache) complete(entry *idempotentResponse, status int, body []byte, now time.Time) {
	c.mu.Lock()
	entry.status, entry.body = status, body
	entry.expires = now.Add(c.ttl)
	c.mu.Unlock()

	close(entry.ready)
}

// release forgets an owned entry whose response must not be replayed, the
// waiters get the response but the next use of the key starts over.
func (c *idempotencyCache) release(key string, entry *idempotentResponse, status int, body []byte) {
	c.mu.Lock()
	if c.entries[key] == entry {
		delete(c.entries, key)
	}
	entry.status, entry.body = status, body
	c.mu.Unlock()

	close(entry.ready)
}

// do runs fn once for key, callers reusing the key while the first is running
// or within the TTL get its response instead with replayed set. Responses for
// which keep returns false reach the waiters but are not remembered. If fn
// panics the key is released before the panic goes on.
func (c *idempotencyCache) do(
	ctx context.Context,
	key string,
	fn func() (int, []byte),
	keep func(status int) bool,
) (status int, body []byte, replayed bool, err error) {
	entry, owned := c.claim(key, time.Now())
	if !owned {
		select {
		case <-entry.ready:
			return entry.status, entry.body, true, nil
		case <-ctx.Done():
			return 0, nil, false, ctx.Err()
		}
	}

	settled := false
	defer func() {
		if !settled {
			c.release(key, entry, http.StatusInternalServerError, internalErrorBody)
		}
	}()

	status, body = fn()
	if keep(status) {
		c.complete(entry, status, body, time.Now())
	} else {
		c.release(key, entry, status, body)
	}
	settled = true

	return status, body, false, nil
}

func isReady(v *idempotentResponse) bool {
	select {
	case <-v.ready:
		return true
	default:
		return false
	}
}
