package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: make(map[string]domain.User)} }

func (f *fakeUsers) CreateUser(ctx context.Context, email, hash string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return domain.User{}, ports.ErrConflict
	}
	u := domain.User{ID: "u-" + email, Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	f.users[email] = u
	return u, nil
}

func (f *fakeUsers) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return domain.User{}, ports.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UserByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, ports.ErrNotFound
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestService(expiry time.Duration) *Service {
	return NewService(&Config{JWTSecret: testSecret, TokenExpiry: expiry}, newFakeUsers(), nil)
}

func genJWTSecret() gopter.Gen {
	return gen.SliceOfN(32, gen.UInt8()).Map(func(b []uint8) []byte {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	})
}

func TestTokenRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("validating a generated token yields the same identity", prop.ForAll(
		func(userID, email string, secret []byte) bool {
			svc := NewService(&Config{JWTSecret: secret, TokenExpiry: time.Hour}, nil, nil)
			token, err := svc.GenerateToken(userID, email)
			if err != nil {
				return false
			}
			claims, err := svc.ValidateToken(token)
			return err == nil && claims.UserID == userID && claims.Email == email
		},
		gen.Identifier(),
		gen.AlphaString(),
		genJWTSecret(),
	))

	properties.TestingRun(t)
}

func TestMalformedTokensRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("random strings never validate", prop.ForAll(
		func(token string) bool {
			claims, err := newTestService(time.Hour).ValidateToken(token)
			return err != nil && claims == nil
		},
		gen.OneGenOf(
			gen.Const(""),
			gen.AlphaString(),
			gen.Const("eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxMjM0In0.tampered"),
		),
	))

	properties.TestingRun(t)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := newTestService(-time.Hour)
	token, err := svc.GenerateToken("user-1", "a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, _ := newTestService(time.Hour).GenerateToken("user-1", "a@b.com")
	other := NewService(&Config{JWTSecret: []byte("another-secret-another-secret-xx"), TokenExpiry: time.Hour}, nil, nil)
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestSignUpSignInSignOut(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(time.Hour)

	sess, err := svc.SignUp(ctx, "  Ada@Example.com ", "correct horse")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if sess.User.Email != "ada@example.com" || sess.Token == "" {
		t.Errorf("session = %+v", sess)
	}
	if _, err := svc.SignUp(ctx, "ada@example.com", "another pass"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate sign-up err = %v", err)
	}

	if _, err := svc.SignIn(ctx, "ada@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad password err = %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v", err)
	}
	sess, err = svc.SignIn(ctx, "ADA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := svc.SignOut(sess.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(sess.Token); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("revoked token err = %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(time.Hour)
	if _, err := svc.SignUp(ctx, "not-an-email", "longenough"); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("email err = %v", err)
	}
	if _, err := svc.SignUp(ctx, "a@b.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("password err = %v", err)
	}
}
