package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// unknownClientKey agrupa los requests sin IP identificable.
const unknownClientKey = "unknown"

// RateDecision es el resultado de consultar la cuota de un cliente.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter limita la cantidad de requests por clave (la IP del cliente).
type RateLimiter interface {
	Allow(ctx context.Context, key string) RateDecision
}

func normalizeClientKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return unknownClientKey
	}
	return key
}

// decideQuota arma la decision a partir de los hits de la ventana actual.
func decideQuota(hits, limit int, resetIn time.Duration) RateDecision {
	d := RateDecision{Allowed: hits <= limit, Limit: limit, Remaining: limit - hits}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = resetIn
	}
	return d
}

type memoryRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	limit     int
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryRateLimiter crea un rate limiter en memoria con ventana deslizante.
// Se usa cuando no hay Redis configurado.
func NewMemoryRateLimiter(window time.Duration, limit int) RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRateLimiter{
		window: window,
		limit:  limit,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *memoryRateLimiter) Allow(_ context.Context, key string) RateDecision {
	key = normalizeClientKey(key)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	kept := pruneBefore(l.hits[key], cutoff)
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return decideQuota(len(kept)+1, l.limit, kept[0].Sub(cutoff))
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return decideQuota(len(kept), l.limit, 0)
}

// sweep borra las IPs sin hits dentro de la ventana.
func (l *memoryRateLimiter) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		if kept := pruneBefore(entries, cutoff); len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
}

func pruneBefore(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
