// Package providerrouter resolves an inbound model name and headers to an
// upstream (base URL, provider tag, auth), per spec §4.1, and tracks
// per-endpoint health via a circuit breaker so a flapping provider endpoint
// doesn't take down every request routed to it.
package providerrouter

import (
	"sync"
	"time"
)

// EndpointHealth tracks one endpoint's recent failure/success history.
// Adapted from the teacher's circuitbreaker.EndpointHealth, generalised from
// "big/small model endpoint" to "provider endpoint".
type EndpointHealth struct {
	URL             string
	FailureCount    int
	SuccessCount    int
	TotalRequests   int
	LastFailureTime time.Time
	LastSuccessTime time.Time
	CircuitOpen     bool
	NextRetryTime   time.Time
}

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	FailureThreshold   int
	BackoffDuration    time.Duration
	MaxBackoffDuration time.Duration
}

// DefaultBreakerConfig mirrors the teacher's defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:   2,
		BackoffDuration:    30 * time.Second,
		MaxBackoffDuration: 5 * time.Minute,
	}
}

// HealthManager tracks endpoint health across providers, safe for
// concurrent use — a provider's endpoint list is read-mostly but failures
// and successes are recorded from every in-flight request.
type HealthManager struct {
	config BreakerConfig
	mu     sync.RWMutex
	health map[string]*EndpointHealth
}

// NewHealthManager constructs a HealthManager with the given breaker config.
func NewHealthManager(config BreakerConfig) *HealthManager {
	return &HealthManager{config: config, health: make(map[string]*EndpointHealth)}
}

// RecordFailure marks endpoint as failed, opening its circuit once the
// configured failure threshold is crossed, with exponential backoff capped
// at MaxBackoffDuration.
func (hm *HealthManager) RecordFailure(endpoint string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	h := hm.entryLocked(endpoint)
	h.FailureCount++
	h.TotalRequests++
	h.LastFailureTime = time.Now()

	if h.FailureCount >= hm.config.FailureThreshold {
		h.CircuitOpen = true
		over := h.FailureCount - hm.config.FailureThreshold + 1
		if over < 1 {
			over = 1
		}
		backoff := hm.config.BackoffDuration
		for i := 1; i < over && backoff < hm.config.MaxBackoffDuration; i++ {
			backoff *= 2
		}
		if backoff > hm.config.MaxBackoffDuration {
			backoff = hm.config.MaxBackoffDuration
		}
		h.NextRetryTime = time.Now().Add(backoff)
	}
}

// RecordSuccess marks endpoint as healthy, closing its circuit if it was open.
func (hm *HealthManager) RecordSuccess(endpoint string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	h := hm.entryLocked(endpoint)
	h.SuccessCount++
	h.TotalRequests++
	h.LastSuccessTime = time.Now()
	h.CircuitOpen = false
	h.FailureCount = 0
	h.NextRetryTime = time.Time{}
}

// IsHealthy reports whether endpoint's circuit is closed, or open but past
// its retry deadline (eligible for a half-open probe).
func (hm *HealthManager) IsHealthy(endpoint string) bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	h, ok := hm.health[endpoint]
	if !ok {
		return true
	}
	if !h.CircuitOpen {
		return true
	}
	return time.Now().After(h.NextRetryTime)
}

// SelectHealthy returns the next healthy endpoint starting at *index,
// rotating through endpoints round-robin and skipping open circuits. Falls
// back to the next endpoint regardless of health if none are healthy.
func (hm *HealthManager) SelectHealthy(endpoints []string, index *int) string {
	if len(endpoints) == 0 {
		return ""
	}
	for attempts := 0; attempts < len(endpoints); attempts++ {
		endpoint := endpoints[*index]
		*index = (*index + 1) % len(endpoints)
		if hm.IsHealthy(endpoint) {
			return endpoint
		}
	}
	endpoint := endpoints[*index]
	*index = (*index + 1) % len(endpoints)
	return endpoint
}

func (hm *HealthManager) entryLocked(endpoint string) *EndpointHealth {
	h, ok := hm.health[endpoint]
	if !ok {
		h = &EndpointHealth{URL: endpoint}
		hm.health[endpoint] = h
	}
	return h
}
