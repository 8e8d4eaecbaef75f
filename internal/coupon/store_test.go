package coupon

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// incrementDB simulates the guarded increment missing its row: the UPDATE
// returns no rows and the follow-up status read reports the stored state.
type incrementDB struct {
	status    string
	statusErr error
}

func (d incrementDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d incrementDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (d incrementDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if strings.Contains(sql, "UPDATE coupons") {
		return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	return fakeRow{scan: func(dest ...any) error {
		if d.statusErr != nil {
			return d.statusErr
		}
		*(dest[0].(*string)) = d.status
		return nil
	}}
}

func TestIncrementUsageDistinguishesDeactivatedFromExhausted(t *testing.T) {
	st := PGStore{DB: incrementDB{status: string(StatusInactive)}}
	if _, _, err := st.IncrementUsage(context.Background(), uuid.New()); !errors.Is(err, ErrNotActive) {
		t.Fatalf("a deactivated coupon must surface ErrNotActive, got %v", err)
	}

	st = PGStore{DB: incrementDB{status: string(StatusActive)}}
	if _, _, err := st.IncrementUsage(context.Background(), uuid.New()); !errors.Is(err, ErrUsageLimitReached) {
		t.Fatalf("an active coupon missing the guard must surface ErrUsageLimitReached, got %v", err)
	}

	st = PGStore{DB: incrementDB{statusErr: pgx.ErrNoRows}}
	if _, _, err := st.IncrementUsage(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("a deleted coupon must surface ErrNotFound, got %v", err)
	}
}
