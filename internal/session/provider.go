// Package session tracks the signed-in state of a client and decides what
// protected and public routes do with it.
package session

import (
	"context"
	"sync"

	"modelmarket/internal/auth"
)

type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

type State struct {
	Status Status       `json:"status"`
	Claims *auth.Claims `json:"user,omitempty"`
}

// Provider exposes session state with an explicit lifecycle.
type Provider interface {
	Initialize(ctx context.Context) error
	OnChange(fn func(State)) (unsubscribe func())
	Current() State
	Dispose()
}

// Validator checks session tokens.
type Validator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// TokenProvider derives session state from a bearer token.
type TokenProvider struct {
	validator Validator

	mu        sync.Mutex
	token     string
	state     State
	listeners map[int]func(State)
	nextID    int
	disposed  bool
}

var _ Provider = (*TokenProvider)(nil)

func NewTokenProvider(v Validator, token string) *TokenProvider {
	return &TokenProvider{
		validator: v,
		token:     token,
		state:     State{Status: StatusLoading},
		listeners: make(map[int]func(State)),
	}
}

// Initialize resolves the loading state. The state stays loading if ctx is done first.
func (p *TokenProvider) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()
	p.set(p.resolve(token))
	return nil
}

func (p *TokenProvider) resolve(token string) State {
	if token == "" {
		return State{Status: StatusUnauthenticated}
	}
	claims, err := p.validator.ValidateToken(token)
	if err != nil {
		return State{Status: StatusUnauthenticated}
	}
	return State{Status: StatusAuthenticated, Claims: claims}
}

// SetToken switches to a new token, e.g. after sign-in. An empty token signs out.
func (p *TokenProvider) SetToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	p.set(p.resolve(token))
}

func (p *TokenProvider) set(st State) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.state = st
	fns := make([]func(State), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (p *TokenProvider) OnChange(fn func(State)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return func() {}
	}
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *TokenProvider) Current() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Dispose drops all listeners. Later state changes are ignored.
func (p *TokenProvider) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disposed = true
	p.listeners = map[int]func(State){}
}
