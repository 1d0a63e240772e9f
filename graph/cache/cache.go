package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/relkit/go-release/internal/metrickeys"
	"github.com/relkit/go-release/metrics"
)

// Plan is a materialized execution order for a task set. Plans are cached by
// graph fingerprint so repeated runs over the same task set (a dry-run
// followed by the real run) skip re-sorting the graph.
//
// A plan holds task ids, not task instances. Callers resolve the ids against
// their own graph, so a cached plan never pins tasks from the run that
// produced it.
type Plan struct {
	// TaskIDs in execution order.
	TaskIDs []string
}

type planCache struct {
	mc metrics.Client
	c  *ttlcache.Cache[string, *Plan]
}

func NewPlanCache(mc metrics.Client, size int, expiration time.Duration) *planCache {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, *Plan](uint64(size)),
		ttlcache.WithTTL[string, *Plan](expiration),
	)

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, *Plan]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		}

		mc.Counter(metrickeys.PlanCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &planCache{
		mc: mc,
		c:  c,
	}
}

func (pc *planCache) Get(ctx context.Context, fingerprint string) (*Plan, bool) {
	i := pc.c.Get(fingerprint)
	if i != nil {
		pc.mc.Counter(metrickeys.PlanCacheHit, metrics.Tags{}, 1)
		return i.Value(), true
	}

	pc.mc.Counter(metrickeys.PlanCacheMiss, metrics.Tags{}, 1)

	return nil, false
}

func (pc *planCache) Store(ctx context.Context, fingerprint string, plan *Plan) {
	pc.c.Set(fingerprint, plan, ttlcache.DefaultTTL)

	pc.mc.Gauge(metrickeys.PlanCacheSize, metrics.Tags{}, int64(pc.c.Len()))
}

func (pc *planCache) Evict(ctx context.Context, fingerprint string) {
	pc.c.Delete(fingerprint)

	pc.mc.Gauge(metrickeys.PlanCacheSize, metrics.Tags{}, int64(pc.c.Len()))
}

// StartEviction runs the cache's eviction loop until the given context is
// canceled.
func (pc *planCache) StartEviction(ctx context.Context) {
	go pc.c.Start()

	<-ctx.Done()

	pc.c.Stop()
}
