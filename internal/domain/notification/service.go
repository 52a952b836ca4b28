package notification

import (
	"context"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
)

// Service routes alerts to channels according to the policy table
type Service interface {
	// Dispatch routes one alert per its severity policy: immediate alerts
	// fan out to every channel concurrently, batched alerts are queued for
	// the next window flush, and none is a no-op. Channel failures are
	// isolated; Dispatch only errors when the policy cannot be resolved.
	Dispatch(ctx context.Context, a *alert.Alert) error

	// FlushDue flushes every batch window whose deadline has passed as of
	// now, sending one digest per channel per organization
	FlushDue(ctx context.Context, now time.Time) error

	// FlushWindow flushes one batch window unconditionally
	FlushWindow(ctx context.Context, window time.Duration) error

	// FlushAll drains every batch window regardless of deadline, so queued
	// alerts survive a shutdown
	FlushAll(ctx context.Context) error

	// PendingCount reports alerts queued for a batch window
	PendingCount(window time.Duration) int

	// GetPolicies retrieves the severity routing table
	GetPolicies(ctx context.Context) ([]*Policy, error)

	// UpdatePolicy validates and persists one severity's routing row
	UpdatePolicy(ctx context.Context, policy *Policy) error

	// EnsurePolicies inserts any severity rows missing from the persisted
	// table, leaving existing rows untouched
	EnsurePolicies(ctx context.Context, defaults []*Policy) error
}

// Sender delivers messages through one channel. Adapters own their
// credentials and configuration; a missing configuration degrades to a
// logged no-op inside the adapter, and failures are returned, never thrown.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	Channel() Channel
}
