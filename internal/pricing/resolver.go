package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"pricescan/internal/models"
)

var (
	// ErrNotFound means no tier could produce a price for the key.
	ErrNotFound = errors.New("price not found")
	// ErrUnsupportedNetwork means the network has no provider mapping.
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// Cache is the ephemeral write-through tier. A miss is (0, false, nil).
type Cache interface {
	Get(ctx context.Context, token, network string, ts int64) (float64, bool, error)
	Set(ctx context.Context, token, network string, ts int64, price float64, source models.Source) error
}

// Store is the durable price store. Lookups return (nil, nil) on absence.
type Store interface {
	GetPrice(ctx context.Context, token, network string, ts int64) (*models.PriceRecord, error)
	NearestBefore(ctx context.Context, token, network string, ts int64) (*models.PriceRecord, error)
	NearestAfter(ctx context.Context, token, network string, ts int64) (*models.PriceRecord, error)
	UpsertPrice(ctx context.Context, rec models.PriceRecord) error
}

// Provider fetches the price for the UTC day containing ts from the
// external API.
type Provider interface {
	SupportsNetwork(network string) bool
	FetchDayPrice(ctx context.Context, token, network string, ts int64) (float64, error)
}

// Resolver walks the tiers in order: cache, store, provider, interpolation.
// The first tier that yields a price wins; faster tiers are refreshed on the
// way out. Derived results (interpolated, before-only, after-only) are only
// ever written to the cache, never to the store.
type Resolver struct {
	cache    Cache
	store    Store
	provider Provider
}

func NewResolver(cache Cache, store Store, provider Provider) *Resolver {
	return &Resolver{cache: cache, store: store, provider: provider}
}

// Resolve returns the price of token on network at ts, together with the
// tier that produced it. Provider failures degrade to interpolation;
// infrastructure failures (cache, store) do not.
func (r *Resolver) Resolve(ctx context.Context, token, network string, ts int64) (models.Resolution, error) {
	// 1. Cache
	price, ok, err := r.cache.Get(ctx, token, network, ts)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("cache get: %w", err)
	}
	if ok {
		return models.Resolution{Price: price, Source: models.SourceCache}, nil
	}

	// 2. Durable store
	rec, err := r.store.GetPrice(ctx, token, network, ts)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("store get: %w", err)
	}
	if rec != nil {
		if err := r.cache.Set(ctx, token, network, ts, rec.Price, models.SourceProvider); err != nil {
			return models.Resolution{}, fmt.Errorf("cache set: %w", err)
		}
		return models.Resolution{Price: rec.Price, Source: models.SourceProvider}, nil
	}

	// 3. External provider
	if !r.provider.SupportsNetwork(network) {
		return models.Resolution{}, ErrUnsupportedNetwork
	}
	price, err = r.provider.FetchDayPrice(ctx, token, network, ts)
	if err == nil {
		if err := r.store.UpsertPrice(ctx, models.PriceRecord{Token: token, Network: network, Timestamp: ts, Price: price}); err != nil {
			return models.Resolution{}, fmt.Errorf("store upsert: %w", err)
		}
		if err := r.cache.Set(ctx, token, network, ts, price, models.SourceProvider); err != nil {
			return models.Resolution{}, fmt.Errorf("cache set: %w", err)
		}
		return models.Resolution{Price: price, Source: models.SourceProvider}, nil
	}
	log.Printf("[resolver] provider fetch failed for %s/%s@%d, falling back: %v", token, network, ts, err)

	// 4. Interpolation over nearest persisted neighbours
	res, err := r.interpolated(ctx, token, network, ts)
	if err != nil {
		return models.Resolution{}, err
	}
	if err := r.cache.Set(ctx, token, network, ts, res.Price, res.Source); err != nil {
		return models.Resolution{}, fmt.Errorf("cache set: %w", err)
	}
	return res, nil
}

func (r *Resolver) interpolated(ctx context.Context, token, network string, ts int64) (models.Resolution, error) {
	before, err := r.store.NearestBefore(ctx, token, network, ts)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("store nearest before: %w", err)
	}
	after, err := r.store.NearestAfter(ctx, token, network, ts)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("store nearest after: %w", err)
	}

	switch {
	case before != nil && after != nil:
		price := Interpolate(ts, before.Timestamp, before.Price, after.Timestamp, after.Price)
		return models.Resolution{Price: price, Source: models.SourceInterpolated}, nil
	case before != nil:
		return models.Resolution{Price: before.Price, Source: models.SourceBeforeOnly}, nil
	case after != nil:
		return models.Resolution{Price: after.Price, Source: models.SourceAfterOnly}, nil
	default:
		return models.Resolution{}, ErrNotFound
	}
}
