// Package wallet sells tokens through the backend's checkout and keeps the ledger.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"modelmarket/internal/adapters/backend"
	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

var (
	ErrUnknownPackage  = errors.New("unknown token package")
	ErrPaymentPending  = errors.New("payment not completed")
	ErrPaymentMismatch = errors.New("payment belongs to another user")
)

// Package is a purchasable bundle of tokens.
type Package struct {
	ID          string `json:"id"`
	Tokens      int64  `json:"tokens"`
	AmountCents int64  `json:"amount_cents"`
}

var Packages = []Package{
	{ID: "starter", Tokens: 100, AmountCents: 1000},
	{ID: "pro", Tokens: 500, AmountCents: 4000},
	{ID: "enterprise", Tokens: 2000, AmountCents: 12000},
}

func findPackage(id string) (Package, bool) {
	for _, p := range Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// Payments is the checkout provider behind the backend API.
type Payments interface {
	CreateCheckout(ctx context.Context, req backend.CheckoutRequest) (backend.CheckoutSession, error)
	VerifyPayment(ctx context.Context, sessionID string) (backend.PaymentStatus, error)
}

type Service struct {
	wallets        ports.WalletRepository
	payments       Payments
	publishableKey string
	logger         *slog.Logger
}

func New(wallets ports.WalletRepository, payments Payments, publishableKey string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{wallets: wallets, payments: payments, publishableKey: publishableKey, logger: logger}
}

func (s *Service) Balance(ctx context.Context, userID string) (domain.Wallet, error) {
	return s.wallets.Wallet(ctx, userID)
}

func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	return s.wallets.Transactions(ctx, userID, limit)
}

// Checkout opens a payment session for one of the token packages.
func (s *Service) Checkout(ctx context.Context, userID, packageID, returnURL string) (backend.CheckoutSession, error) {
	pkg, ok := findPackage(packageID)
	if !ok {
		return backend.CheckoutSession{}, fmt.Errorf("%w: %q", ErrUnknownPackage, packageID)
	}
	sess, err := s.payments.CreateCheckout(ctx, backend.CheckoutRequest{
		UserID:    userID,
		Tokens:    pkg.Tokens,
		AmountUSD: pkg.AmountCents,
		ReturnURL: returnURL,
	})
	if err != nil {
		return backend.CheckoutSession{}, fmt.Errorf("create checkout: %w", err)
	}
	if sess.PublishableKey == "" {
		sess.PublishableKey = s.publishableKey
	}
	return sess, nil
}

// Verification is the outcome of confirming a payment.
type Verification struct {
	Wallet   domain.Wallet `json:"wallet"`
	Credited int64         `json:"credited"`
}

// Verify confirms a checkout session and credits its tokens. A session is
// credited at most once; repeated calls return the current balance.
func (s *Service) Verify(ctx context.Context, userID, sessionID string) (Verification, error) {
	ps, err := s.payments.VerifyPayment(ctx, sessionID)
	if err != nil {
		return Verification{}, fmt.Errorf("verify payment: %w", err)
	}
	if !ps.Paid {
		return Verification{}, ErrPaymentPending
	}
	if ps.UserID != "" && ps.UserID != userID {
		return Verification{}, ErrPaymentMismatch
	}
	ref := ps.Reference
	if ref == "" {
		ref = sessionID
	}
	tx := domain.Transaction{UserID: userID, Kind: domain.TxPurchase, Amount: ps.Tokens, Reference: ref}
	if err := tx.Validate(); err != nil {
		return Verification{}, err
	}

	w, err := s.wallets.ApplyTransaction(ctx, tx)
	if errors.Is(err, ports.ErrConflict) {
		w, err = s.wallets.Wallet(ctx, userID)
		return Verification{Wallet: w}, err
	}
	if err != nil {
		return Verification{}, err
	}
	s.logger.Info("tokens credited", "user_id", userID, "reference", ref, "tokens", ps.Tokens)
	return Verification{Wallet: w, Credited: ps.Tokens}, nil
}
