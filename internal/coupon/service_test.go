package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type stubStore struct {
	coupon       Coupon
	found        bool
	userUses     int64
	expiredIDs   []uuid.UUID
	inactiveIDs  []uuid.UUID
	usages       []Usage
	count        int32
	limit        *int32
	incrementErr error
}

func (s *stubStore) GetByCode(ctx context.Context, code string) (Coupon, error) {
	if !s.found {
		return Coupon{}, ErrNotFound
	}
	return s.coupon, nil
}

func (s *stubStore) MarkExpired(ctx context.Context, id uuid.UUID) error {
	s.expiredIDs = append(s.expiredIDs, id)
	return nil
}

func (s *stubStore) MarkInactive(ctx context.Context, id uuid.UUID) error {
	s.inactiveIDs = append(s.inactiveIDs, id)
	return nil
}

func (s *stubStore) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	return s.userUses, nil
}

func (s *stubStore) InsertUsage(ctx context.Context, u Usage) (Usage, error) {
	u.ID = uuid.New()
	s.usages = append(s.usages, u)
	return u, nil
}

func (s *stubStore) IncrementUsage(ctx context.Context, id uuid.UUID) (int32, *int32, error) {
	if s.incrementErr != nil {
		return 0, nil, s.incrementErr
	}
	s.count++
	return s.count, s.limit, nil
}

func (s *stubStore) WithTx(tx pgx.Tx) Store { return s }

func testService(st *stubStore) *Service {
	return &Service{Store: st, Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }}
}

func windowAround(now time.Time) (*time.Time, *time.Time) {
	from := now.Add(-time.Hour)
	until := now.Add(time.Hour)
	return &from, &until
}

func TestValidateUnknownCode(t *testing.T) {
	svc := testService(&stubStore{})
	if _, err := svc.Validate(context.Background(), "NOPE", 100, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateBlankCodeRejectedBeforeLookup(t *testing.T) {
	svc := testService(&stubStore{})
	if _, err := svc.Validate(context.Background(), "   ", 100, nil); !errors.Is(err, ErrCodeRequired) {
		t.Fatalf("expected ErrCodeRequired, got %v", err)
	}
}

func TestValidatePersistsExpiryFlip(t *testing.T) {
	st := &stubStore{found: true}
	svc := testService(st)
	now := svc.Now()
	past := now.Add(-time.Minute)
	from := now.Add(-time.Hour)
	st.coupon = Coupon{ID: uuid.New(), Code: "OLD", Type: TypeFixed, Status: StatusActive, ValidFrom: &from, ValidUntil: &past}

	_, err := svc.Validate(context.Background(), "OLD", 100, nil)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if len(st.expiredIDs) != 1 || st.expiredIDs[0] != st.coupon.ID {
		t.Fatalf("expected expiry flip to be persisted, got %v", st.expiredIDs)
	}
}

func TestValidateIsIdempotentOnUsageCount(t *testing.T) {
	st := &stubStore{found: true}
	svc := testService(st)
	from, until := windowAround(svc.Now())
	st.coupon = Coupon{ID: uuid.New(), Code: "PROMO", Type: TypeFixed, DiscountValue: f(5), Status: StatusActive, ValidFrom: from, ValidUntil: until}

	for range 3 {
		if _, err := svc.Validate(context.Background(), "PROMO", 100, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if st.count != 0 || len(st.usages) != 0 {
		t.Fatalf("validation must never touch usage counters, count=%d usages=%d", st.count, len(st.usages))
	}
}

func TestValidatePerUserLimit(t *testing.T) {
	st := &stubStore{found: true, userUses: 2}
	svc := testService(st)
	from, until := windowAround(svc.Now())
	st.coupon = Coupon{ID: uuid.New(), Code: "PROMO", Type: TypeFixed, DiscountValue: f(5), Status: StatusActive, ValidFrom: from, ValidUntil: until, UsageLimitPerUser: i32(2)}

	user := uuid.New()
	_, err := svc.Validate(context.Background(), "PROMO", 100, &user)
	if !errors.Is(err, ErrPerUserLimitReached) {
		t.Fatalf("expected ErrPerUserLimitReached, got %v", err)
	}
}

func TestApplyComputesDiscountWithoutRecording(t *testing.T) {
	st := &stubStore{found: true}
	svc := testService(st)
	from, until := windowAround(svc.Now())
	st.coupon = Coupon{ID: uuid.New(), Code: "TWENTY", Type: TypePercentage, DiscountValue: f(20), MaxDiscountAmount: f(15), Status: StatusActive, ValidFrom: from, ValidUntil: until}

	result, err := svc.Apply(context.Background(), "twenty", 100, nil, nil, 3.99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Discount != 15 {
		t.Fatalf("expected capped discount 15, got %v", result.Discount)
	}
	if len(st.usages) != 0 {
		t.Fatal("apply must not record usage")
	}
}

func TestRecordUsageFlipsInactiveAtLimit(t *testing.T) {
	st := &stubStore{found: true, limit: i32(3), count: 2}
	svc := testService(st)
	couponID := uuid.New()

	if err := svc.RecordUsage(context.Background(), couponID, uuid.New(), 5, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.usages) != 1 {
		t.Fatalf("expected one usage row, got %d", len(st.usages))
	}
	if len(st.inactiveIDs) != 1 || st.inactiveIDs[0] != couponID {
		t.Fatalf("expected INACTIVE flip at limit, got %v", st.inactiveIDs)
	}
}

func TestRecordUsageBelowLimitKeepsActive(t *testing.T) {
	st := &stubStore{found: true, limit: i32(10)}
	svc := testService(st)

	if err := svc.RecordUsage(context.Background(), uuid.New(), uuid.New(), 5, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.inactiveIDs) != 0 {
		t.Fatal("coupon below limit must stay active")
	}
}

func TestRecordUsageSurfacesExhaustedLimit(t *testing.T) {
	st := &stubStore{found: true, incrementErr: ErrUsageLimitReached}
	svc := testService(st)

	err := svc.RecordUsage(context.Background(), uuid.New(), uuid.New(), 5, nil)
	if !errors.Is(err, ErrUsageLimitReached) {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}
}
