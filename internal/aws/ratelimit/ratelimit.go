// Package ratelimit spaces calls to AWS APIs whose account-wide request rate
// is low enough that parallel audits trip throttling.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"cloudaudit/internal/logging"

	"github.com/aws/aws-sdk-go/aws/request"
)

const (
	// defaultRequestsPerSecond applies to APIs without an explicit limit
	defaultRequestsPerSecond = 5

	// HandlerName names the SDK request handler installed by Install
	HandlerName = "cloudaudit.ratelimit"
)

var (
	// Global instance of the service limiter registry
	globalRegistry = &registry{
		limiters: make(map[string]*Limiter),
	}
)

// ServiceConfig holds configuration for a service's rate limits
type ServiceConfig struct {
	// Default requests per second for APIs not explicitly configured.
	// Zero or less disables limiting for those APIs.
	DefaultRequestsPerSecond int
	// Specific API rate limits, overrides default
	APILimits map[string]int
}

// DefaultServiceConfig returns a default configuration for a service
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultRequestsPerSecond: defaultRequestsPerSecond,
		APILimits: map[string]int{
			// Per-user IAM reads issued by the inventory
			"ListGroupsForUser":        10,
			"ListAttachedUserPolicies": 10,
			"ListUserPolicies":         10,
			"ListAccessKeys":           10,
			"GetAccessKeyLastUsed":     10,
			"ListMFADevices":           10,
			"ListSSHPublicKeys":        10,
			"ListUserTags":             10,
		},
	}
}

type registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// ForService returns the limiter for serviceName, creating it on first use.
// Later calls ignore configs and return the existing limiter.
func ForService(serviceName string, configs ...ServiceConfig) *Limiter {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if limiter, exists := globalRegistry.limiters[serviceName]; exists {
		return limiter
	}

	limiter := New(configs...)
	globalRegistry.limiters[serviceName] = limiter
	return limiter
}

// Limiter hands out call slots per API so that calls to one API are at
// least 1/rps apart, no matter how many goroutines share it
type Limiter struct {
	mu     sync.Mutex
	next   map[string]time.Time
	config ServiceConfig
}

// New creates a Limiter with an optional configuration
func New(configs ...ServiceConfig) *Limiter {
	config := DefaultServiceConfig()
	if len(configs) > 0 {
		config = configs[0]
	}

	return &Limiter{
		next:   make(map[string]time.Time),
		config: config,
	}
}

// interval returns the minimum interval between requests for a given API
func (l *Limiter) interval(apiName string) time.Duration {
	rps, ok := l.config.APILimits[apiName]
	if !ok {
		rps = l.config.DefaultRequestsPerSecond
	}
	if rps <= 0 {
		return 0
	}
	return time.Second / time.Duration(rps)
}

// reserve books the next free slot for apiName and returns how long the
// caller has to wait for it
func (l *Limiter) reserve(apiName string, now time.Time) time.Duration {
	interval := l.interval(apiName)
	if interval == 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	slot := l.next[apiName]
	if slot.Before(now) {
		slot = now
	}
	l.next[apiName] = slot.Add(interval)
	return slot.Sub(now)
}

// Wait blocks until apiName may be called or ctx is done
func (l *Limiter) Wait(ctx context.Context, apiName string) error {
	delay := l.reserve(apiName, time.Now())
	if delay <= 0 {
		return nil
	}

	logging.Debug("Waiting for rate limit", map[string]interface{}{
		"api":   apiName,
		"delay": delay.String(),
	})

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Handler returns an SDK request handler that waits for a slot before the
// request is signed. A cancelled wait fails the request.
func (l *Limiter) Handler() request.NamedHandler {
	return request.NamedHandler{
		Name: HandlerName,
		Fn: func(r *request.Request) {
			if err := l.Wait(r.Context(), r.Operation.Name); err != nil {
				r.Error = err
			}
		},
	}
}

// Install makes every request sent through handlers wait for l. Requests are
// signed once per attempt, so SDK retries are spaced as well.
func (l *Limiter) Install(handlers *request.Handlers) {
	handlers.Sign.PushFrontNamed(l.Handler())
}
