package settings

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubStore struct {
	settings Settings
	gets     int
	updates  int
}

func (s *stubStore) Get(ctx context.Context) (Settings, error) {
	s.gets++
	return s.settings, nil
}

func (s *stubStore) Update(ctx context.Context, p UpdateParams) (Settings, error) {
	s.updates++
	if p.TaxRate != nil {
		s.settings.TaxRate = *p.TaxRate
	}
	if p.ClearMinOrder {
		s.settings.MinOrderAmount = nil
	} else if p.MinOrderAmount != nil {
		s.settings.MinOrderAmount = p.MinOrderAmount
	}
	if p.DefaultDeliveryFee != nil {
		s.settings.DefaultDeliveryFee = *p.DefaultDeliveryFee
	}
	return s.settings, nil
}

func newTestProvider(t *testing.T, st Store) (*Provider, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &Provider{Store: st, Client: client, TTL: time.Minute}, mr
}

func TestProviderReadThroughCache(t *testing.T) {
	minOrder := 15.0
	st := &stubStore{settings: Settings{TaxRate: 0.0825, MinOrderAmount: &minOrder, DefaultDeliveryFee: 3.99}}
	p, _ := newTestProvider(t, st)
	ctx := context.Background()

	first, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.TaxRate != 0.0825 {
		t.Fatalf("unexpected tax rate: %v", first.TaxRate)
	}

	second, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if second.DefaultDeliveryFee != 3.99 || second.MinOrderAmount == nil || *second.MinOrderAmount != 15 {
		t.Fatalf("cached settings mismatch: %+v", second)
	}
	if st.gets != 1 {
		t.Fatalf("second read must be served from cache, store hit %d times", st.gets)
	}
}

func TestProviderCacheExpiry(t *testing.T) {
	st := &stubStore{settings: Settings{TaxRate: 0.1, DefaultDeliveryFee: 3.99}}
	p, mr := newTestProvider(t, st)
	ctx := context.Background()

	if _, err := p.Get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := p.Get(ctx); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if st.gets != 2 {
		t.Fatalf("expired entry must fall through to the store, hits %d", st.gets)
	}
}

func TestProviderUpdateInvalidatesCache(t *testing.T) {
	st := &stubStore{settings: Settings{TaxRate: 0.0825, DefaultDeliveryFee: 3.99}}
	p, _ := newTestProvider(t, st)
	ctx := context.Background()

	if _, err := p.Get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}

	newRate := 0.09
	if _, err := p.Update(ctx, UpdateParams{TaxRate: &newRate}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.TaxRate != 0.09 {
		t.Fatalf("expected updated tax rate from store, got %v", got.TaxRate)
	}
	if st.gets != 2 {
		t.Fatalf("update must drop the cached copy, store hits %d", st.gets)
	}
}

func TestProviderWithoutRedis(t *testing.T) {
	st := &stubStore{settings: Settings{TaxRate: 0.0825, DefaultDeliveryFee: 3.99}}
	p := &Provider{Store: st}

	for i := 0; i < 2; i++ {
		if _, err := p.Get(context.Background()); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if st.gets != 2 {
		t.Fatalf("cacheless provider reads the store each time, hits %d", st.gets)
	}
}
