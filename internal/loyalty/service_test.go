package loyalty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type stubStore struct {
	account Account
	found   bool
	txns    []Transaction
}

func (s *stubStore) GetAccount(ctx context.Context, userID uuid.UUID) (Account, error) {
	if !s.found {
		return Account{}, ErrAccountNotFound
	}
	return s.account, nil
}

func (s *stubStore) DebitPoints(ctx context.Context, userID uuid.UUID, points int64) (int64, error) {
	if points > s.account.Points {
		return 0, ErrInsufficientPoints
	}
	s.account.Points -= points
	return s.account.Points, nil
}

func (s *stubStore) CreditPoints(ctx context.Context, userID uuid.UUID, points int64) (int64, error) {
	s.account.Points += points
	s.found = true
	return s.account.Points, nil
}

func (s *stubStore) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	t.ID = uuid.New()
	s.txns = append(s.txns, t)
	return t, nil
}

func (s *stubStore) WithTx(tx pgx.Tx) Store { return s }

func testService(st *stubStore) *Service {
	return &Service{
		Store:         st,
		PointsPerUnit: 100,
		Now:           func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestDiscountConversion(t *testing.T) {
	svc := testService(&stubStore{})
	if got := svc.Discount(250); got != 2.5 {
		t.Fatalf("250 points at 100/unit should be 2.50, got %v", got)
	}
	if got := svc.Discount(0); got != 0 {
		t.Fatalf("zero points yields zero discount, got %v", got)
	}
}

func TestRedeemInsufficientPointsLeavesBalanceUntouched(t *testing.T) {
	user := uuid.New()
	st := &stubStore{account: Account{UserID: user, Points: 100}, found: true}
	svc := testService(st)

	_, err := svc.Redeem(context.Background(), user, 150, nil, nil)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if st.account.Points != 100 {
		t.Fatalf("balance must be unchanged, got %d", st.account.Points)
	}
	if len(st.txns) != 0 {
		t.Fatal("no ledger entry may be appended on failure")
	}
}

func TestRedeemDecrementsAndConverts(t *testing.T) {
	user := uuid.New()
	st := &stubStore{account: Account{UserID: user, Points: 500}, found: true}
	svc := testService(st)

	redemption, err := svc.Redeem(context.Background(), user, 300, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if redemption.DiscountAmount != 3 {
		t.Fatalf("expected 3.00 discount, got %v", redemption.DiscountAmount)
	}
	if redemption.NewBalance != 200 {
		t.Fatalf("expected 200 remaining, got %d", redemption.NewBalance)
	}
	if len(st.txns) != 1 || st.txns[0].Points != -300 {
		t.Fatalf("expected one debit ledger entry, got %+v", st.txns)
	}
}

func TestRedeemRejectsNonPositivePoints(t *testing.T) {
	svc := testService(&stubStore{found: true})
	if _, err := svc.Redeem(context.Background(), uuid.New(), 0, nil, nil); !errors.Is(err, ErrInvalidPoints) {
		t.Fatalf("expected ErrInvalidPoints, got %v", err)
	}
}

func TestRedeemUnknownAccount(t *testing.T) {
	svc := testService(&stubStore{})
	if _, err := svc.Redeem(context.Background(), uuid.New(), 10, nil, nil); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestGrantCreatesAccount(t *testing.T) {
	st := &stubStore{}
	svc := testService(st)

	balance, err := svc.Grant(context.Background(), uuid.New(), 250, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 250 {
		t.Fatalf("expected 250 points, got %d", balance)
	}
	if len(st.txns) != 1 || st.txns[0].Points != 250 {
		t.Fatalf("expected one credit ledger entry, got %+v", st.txns)
	}
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx *fakeTx
}

func (b *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	b.tx = &fakeTx{}
	return b.tx, nil
}

// failingInsert credits fine but loses the ledger row, the failure mode a
// grant must not commit through.
type failingInsert struct {
	*stubStore
}

func (s failingInsert) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	return Transaction{}, errors.New("insert failed")
}

func (s failingInsert) WithTx(tx pgx.Tx) Store { return s }

func TestGrantRollsBackWhenLedgerAppendFails(t *testing.T) {
	st := &stubStore{}
	pool := &fakeBeginner{}
	svc := testService(st)
	svc.Store = failingInsert{st}
	svc.Pool = pool

	if _, err := svc.Grant(context.Background(), uuid.New(), 250, nil); err == nil {
		t.Fatal("expected the grant to fail")
	}
	if pool.tx.committed {
		t.Fatal("grant must not commit when the ledger append fails")
	}
	if !pool.tx.rolledBack {
		t.Fatal("grant must roll back when the ledger append fails")
	}
}

func TestGrantCommitsCreditAndLedgerTogether(t *testing.T) {
	st := &stubStore{}
	pool := &fakeBeginner{}
	svc := testService(st)
	svc.Pool = pool

	balance, err := svc.Grant(context.Background(), uuid.New(), 100, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 100 || len(st.txns) != 1 {
		t.Fatalf("expected credited balance with one ledger entry, got %d / %+v", balance, st.txns)
	}
	if !pool.tx.committed {
		t.Fatal("expected the grant transaction to commit")
	}
}
