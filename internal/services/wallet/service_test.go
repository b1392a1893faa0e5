package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"modelmarket/internal/adapters/backend"
	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

type fakeWallets struct {
	mu       sync.Mutex
	balances map[string]int64
	refs     map[string]bool
	txs      []domain.Transaction
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{balances: map[string]int64{}, refs: map[string]bool{}}
}

func (f *fakeWallets) Wallet(ctx context.Context, userID string) (domain.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Wallet{UserID: userID, Balance: f.balances[userID]}, nil
}

func (f *fakeWallets) Transactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Transaction(nil), f.txs...), nil
}

func (f *fakeWallets) ApplyTransaction(ctx context.Context, tx domain.Transaction) (domain.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// purchase references are unique across users, others per user
	key := tx.UserID + "/" + tx.Reference
	if tx.Kind == domain.TxPurchase {
		key = "purchase/" + tx.Reference
	}
	if f.refs[key] {
		return domain.Wallet{}, ports.ErrConflict
	}
	if f.balances[tx.UserID]+tx.Amount < 0 {
		return domain.Wallet{}, ports.ErrInsufficientFunds
	}
	f.refs[key] = true
	f.balances[tx.UserID] += tx.Amount
	f.txs = append(f.txs, tx)
	return domain.Wallet{UserID: tx.UserID, Balance: f.balances[tx.UserID]}, nil
}

type fakePayments struct {
	status  backend.PaymentStatus
	err     error
	lastReq backend.CheckoutRequest
}

func (f *fakePayments) CreateCheckout(ctx context.Context, req backend.CheckoutRequest) (backend.CheckoutSession, error) {
	f.lastReq = req
	return backend.CheckoutSession{SessionID: "cs_1", URL: "https://pay.example.com/cs_1"}, f.err
}

func (f *fakePayments) VerifyPayment(ctx context.Context, sessionID string) (backend.PaymentStatus, error) {
	st := f.status
	if st.Reference == "" {
		st.Reference = sessionID
	}
	return st, f.err
}

func TestCheckoutPackages(t *testing.T) {
	pay := &fakePayments{}
	svc := New(newFakeWallets(), pay, "pk_test", nil)
	sess, err := svc.Checkout(context.Background(), "u1", "pro", "")
	if err != nil {
		t.Fatal(err)
	}
	if sess.PublishableKey != "pk_test" || pay.lastReq.Tokens != 500 || pay.lastReq.AmountUSD != 4000 {
		t.Errorf("session = %+v, request = %+v", sess, pay.lastReq)
	}
	if _, err := svc.Checkout(context.Background(), "u1", "free", ""); !errors.Is(err, ErrUnknownPackage) {
		t.Errorf("err = %v", err)
	}
}

func TestVerifyCreditsOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated verification credits a session once", prop.ForAll(
		func(tokens int64, repeats int) bool {
			wallets := newFakeWallets()
			svc := New(wallets, &fakePayments{status: backend.PaymentStatus{Paid: true, Tokens: tokens}}, "", nil)
			var credited int64
			for i := 0; i < repeats; i++ {
				v, err := svc.Verify(context.Background(), "u1", "cs_same")
				if err != nil {
					return false
				}
				credited += v.Credited
			}
			w, _ := wallets.Wallet(context.Background(), "u1")
			return credited == tokens && w.Balance == tokens && len(wallets.txs) == 1
		},
		gen.Int64Range(1, 100000),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

func TestVerifySessionCreditsOnlyOneUser(t *testing.T) {
	ctx := context.Background()
	wallets := newFakeWallets()
	svc := New(wallets, &fakePayments{status: backend.PaymentStatus{Paid: true, Tokens: 500}}, "", nil)

	first, err := svc.Verify(ctx, "u1", "cs_shared")
	if err != nil || first.Credited != 500 {
		t.Fatalf("first verify = %+v, %v", first, err)
	}
	second, err := svc.Verify(ctx, "u2", "cs_shared")
	if err != nil {
		t.Fatal(err)
	}
	if second.Credited != 0 || second.Wallet.Balance != 0 {
		t.Errorf("second user verify = %+v", second)
	}
	if len(wallets.txs) != 1 {
		t.Errorf("transactions = %d, want 1", len(wallets.txs))
	}
}

func TestVerifyRejects(t *testing.T) {
	ctx := context.Background()
	pending := New(newFakeWallets(), &fakePayments{status: backend.PaymentStatus{Paid: false}}, "", nil)
	if _, err := pending.Verify(ctx, "u1", "cs_1"); !errors.Is(err, ErrPaymentPending) {
		t.Errorf("pending err = %v", err)
	}

	other := New(newFakeWallets(), &fakePayments{status: backend.PaymentStatus{Paid: true, Tokens: 10, UserID: "u2"}}, "", nil)
	if _, err := other.Verify(ctx, "u1", "cs_1"); !errors.Is(err, ErrPaymentMismatch) {
		t.Errorf("mismatch err = %v", err)
	}

	zero := New(newFakeWallets(), &fakePayments{status: backend.PaymentStatus{Paid: true, Tokens: 0}}, "", nil)
	if _, err := zero.Verify(ctx, "u1", "cs_1"); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("zero tokens err = %v", err)
	}

	down := New(newFakeWallets(), &fakePayments{err: &backend.StatusError{Code: 502}}, "", nil)
	var se *backend.StatusError
	if _, err := down.Verify(ctx, "u1", "cs_1"); !errors.As(err, &se) {
		t.Errorf("backend err = %v", err)
	}
}
