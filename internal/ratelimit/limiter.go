package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/servicehub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	keyBookingCreate = "servicehub:ratelimit:booking:%s"

	localIdleTTL    = 10 * time.Minute
	localPruneAbove = 4096
)

type Params struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	Redis       *redis.Client                   `optional:"true"`
	Marketplace *config.MarketplaceConfigHolder `optional:"true"`
}

// BookingLimiter throttles booking creation per customer. With redis it
// shares one bucket per customer across instances; otherwise each instance
// keeps its own buckets in memory.
type BookingLimiter struct {
	enabled     bool
	log         *zap.Logger
	bucket      *TokenBucket
	local       *localBuckets
	marketplace *config.MarketplaceConfigHolder
}

func NewBookingLimiter(p Params) *BookingLimiter {
	marketplace := p.Marketplace
	if marketplace == nil {
		marketplace = config.NewStaticMarketplaceConfigHolder(config.DefaultMarketplaceConfig())
	}
	return &BookingLimiter{
		enabled:     p.Config.RateLimit.Enabled,
		log:         p.Log.Named("ratelimit"),
		bucket:      NewTokenBucket(p.Redis),
		local:       newLocalBuckets(),
		marketplace: marketplace,
	}
}

func (l *BookingLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow takes one token for customerID. Redis failures fall back to the
// in-memory bucket rather than rejecting the request.
func (l *BookingLimiter) Allow(ctx context.Context, customerID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	perMinute := l.marketplace.Get().BookingCreatePerMin
	if perMinute <= 0 {
		return Result{Allowed: true}, nil
	}
	perSecond := float64(perMinute) / 60
	key := fmt.Sprintf(keyBookingCreate, strings.TrimSpace(customerID))

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, key, perSecond, perMinute)
		if err == nil {
			return res, nil
		}
		l.log.Warn("redis rate limit failed, using local bucket", zap.Error(err))
	}
	return l.local.allow(key, perSecond, perMinute, time.Now()), nil
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localBuckets struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

func newLocalBuckets() *localBuckets {
	return &localBuckets{entries: make(map[string]*localEntry)}
}

func (b *localBuckets) allow(key string, perSecond float64, burst int, now time.Time) Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.entries[key]
	if entry == nil {
		if len(b.entries) >= localPruneAbove {
			b.prune(now)
		}
		entry = &localEntry{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
		b.entries[key] = entry
	}
	if entry.limiter.Limit() != rate.Limit(perSecond) {
		entry.limiter.SetLimitAt(now, rate.Limit(perSecond))
	}
	if entry.limiter.Burst() != burst {
		entry.limiter.SetBurstAt(now, burst)
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	remaining := entry.limiter.TokensAt(now)
	return Result{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(remaining),
		RetryAfter: retryAfter(allowed, remaining, perSecond),
	}
}

func (b *localBuckets) prune(now time.Time) {
	for key, entry := range b.entries {
		if now.Sub(entry.lastSeen) > localIdleTTL {
			delete(b.entries, key)
		}
	}
}
