// Package auth provides sign-up, sign-in and JWT session handling.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrRevokedToken       = errors.New("token has been revoked")
	ErrMissingClaims      = errors.New("missing required claims")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
)

// Claims is the identity carried by a session token.
type Claims struct {
	TokenID string    `json:"-"`
	UserID  string    `json:"user_id"`
	Email   string    `json:"email"`
	Exp     time.Time `json:"exp"`
}

type Config struct {
	JWTSecret   []byte
	TokenExpiry time.Duration
}

// Session is what sign-in returns to the client.
type Session struct {
	Token     string      `json:"access_token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

type Service struct {
	jwtSecret   []byte
	tokenExpiry time.Duration
	users       ports.UserRepository
	logger      *slog.Logger

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

func NewService(cfg *Config, users ports.UserRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jwtSecret:   cfg.JWTSecret,
		tokenExpiry: cfg.TokenExpiry,
		users:       users,
		logger:      logger,
		revoked:     make(map[string]time.Time),
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp creates an account and opens a session for it.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, email, string(hash))
	if errors.Is(err, ports.ErrConflict) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", "user_id", user.ID)
	return s.open(user)
}

// SignIn checks credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.open(user)
}

// SignOut revokes the token until it would have expired anyway.
func (s *Service) SignOut(token string) error {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.TokenID] = claims.Exp
	return nil
}

func (s *Service) open(user domain.User) (*Session, error) {
	token, exp, err := s.generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// GenerateToken creates a signed token for the user.
func (s *Service) GenerateToken(userID, email string) (string, error) {
	token, _, err := s.generate(userID, email)
	return token, err
}

func (s *Service) generate(userID, email string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrMissingClaims
	}
	now := time.Now()
	exp := now.Add(s.tokenExpiry)
	claims := jwt.MapClaims{
		"jti":   uuid.NewString(),
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, time.Unix(exp.Unix(), 0), nil
}

// ValidateToken parses and checks a token, returning its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	userID, _ := mapClaims["sub"].(string)
	tokenID, _ := mapClaims["jti"].(string)
	expFloat, ok := mapClaims["exp"].(float64)
	if userID == "" || tokenID == "" || !ok {
		return nil, ErrMissingClaims
	}
	email, _ := mapClaims["email"].(string)

	s.mu.Lock()
	_, revoked := s.revoked[tokenID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrRevokedToken
	}
	return &Claims{TokenID: tokenID, UserID: userID, Email: email, Exp: time.Unix(int64(expFloat), 0)}, nil
}
