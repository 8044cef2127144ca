// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is implemented by every row store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker implements health checking for the configured row store.
type StoreChecker struct {
	store   Pinger
	timeout time.Duration
}

// NewStoreChecker creates a new row store health checker.
// A zero timeout leaves the caller's deadline in charge.
func NewStoreChecker(store Pinger, timeout time.Duration) *StoreChecker {
	return &StoreChecker{
		store:   store,
		timeout: timeout,
	}
}

// HealthCheck pings the store.
func (s *StoreChecker) HealthCheck(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("row store unreachable: %w", err)
	}
	return nil
}
