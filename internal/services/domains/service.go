package domains

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

var ErrInvalidDomain = errors.New("invalid domain")

type Service struct {
	domains ports.DomainRepository
}

func New(domains ports.DomainRepository) *Service {
	return &Service{domains: domains}
}

// Registrable reduces a URL or bare host to its registrable domain (eTLD+1).
func Registrable(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" || !strings.Contains(host, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}
	return registrable, nil
}

// Add records the registrable domain of rawurl for the user. Adding the same
// domain twice returns the existing row.
func (s *Service) Add(ctx context.Context, userID, rawurl string) (domain.Domain, error) {
	registrable, err := Registrable(rawurl)
	if err != nil {
		return domain.Domain{}, err
	}
	return s.domains.GetOrCreateDomain(ctx, userID, registrable)
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Domain, error) {
	return s.domains.ListDomains(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.domains.DeleteDomain(ctx, userID, id)
}
