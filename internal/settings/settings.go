package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Settings is the single restaurant-wide pricing configuration row. Every
// quote and priced order resolves it once at the start of composition.
type Settings struct {
	TaxRate            float64   `json:"taxRate"`
	MinOrderAmount     *float64  `json:"minOrderAmount"`
	DefaultDeliveryFee float64   `json:"defaultDeliveryFee"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// UpdateParams carries the mutable settings fields. Nil fields keep their
// current value.
type UpdateParams struct {
	TaxRate            *float64
	MinOrderAmount     *float64
	ClearMinOrder      bool
	DefaultDeliveryFee *float64
}

// Store reads and writes the settings row.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, p UpdateParams) (Settings, error)
}

// ErrNotConfigured is returned when the settings row is missing entirely.
var ErrNotConfigured = errors.New("restaurant settings not configured")

const cacheKey = "settings:restaurant"

// Provider serves settings through a Redis read-through cache so the hot
// quote path does not hit Postgres on every request. Updates invalidate the
// cached copy before returning.
type Provider struct {
	Store  Store
	Client *redis.Client
	TTL    time.Duration
	Log    zerolog.Logger
}

// Get returns the current settings, from cache when fresh.
func (p *Provider) Get(ctx context.Context) (Settings, error) {
	if p == nil || p.Store == nil {
		return Settings{}, ErrNotConfigured
	}
	var s Settings
	if ok, err := p.getCached(ctx, &s); err != nil {
		p.Log.Warn().Err(err).Msg("settings cache read failed")
	} else if ok {
		return s, nil
	}
	s, err := p.Store.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	if err := p.setCached(ctx, s); err != nil {
		p.Log.Warn().Err(err).Msg("settings cache write failed")
	}
	return s, nil
}

// Update persists the changed fields and drops the cached copy.
func (p *Provider) Update(ctx context.Context, params UpdateParams) (Settings, error) {
	if p == nil || p.Store == nil {
		return Settings{}, ErrNotConfigured
	}
	s, err := p.Store.Update(ctx, params)
	if err != nil {
		return Settings{}, err
	}
	if p.Client != nil {
		if err := p.Client.Del(ctx, cacheKey).Err(); err != nil {
			p.Log.Warn().Err(err).Msg("settings cache invalidation failed")
		}
	}
	return s, nil
}

func (p *Provider) getCached(ctx context.Context, dst *Settings) (bool, error) {
	if p.Client == nil || p.TTL <= 0 {
		return false, nil
	}
	data, err := p.Client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) setCached(ctx context.Context, s Settings) error {
	if p.Client == nil || p.TTL <= 0 {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.Client.Set(ctx, cacheKey, data, p.TTL).Err()
}
