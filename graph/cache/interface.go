package cache

import (
	"context"
)

type Cache interface {
	Get(ctx context.Context, fingerprint string) (*Plan, bool)

	Store(ctx context.Context, fingerprint string, plan *Plan)

	Evict(ctx context.Context, fingerprint string)

	// StartEviction starts the eviction loop and blocks until the context is
	// canceled.
	StartEviction(ctx context.Context)
}

var _ Cache = (*planCache)(nil)
