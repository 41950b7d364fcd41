package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/repositories"
)

// ErrUnknownCartProvider is returned when no source is registered for the
// requested provider key.
var ErrUnknownCartProvider = errors.New("cart providers: unknown provider")

// CartProviderRegistry maps provider identifiers to their cart sources.
// Dispatch is an explicit key lookup made at call sites.
type CartProviderRegistry struct {
	sources         map[string]CartSource
	defaultProvider string
}

// NewCartProviderRegistry constructs a registry over the supplied sources.
func NewCartProviderRegistry(sources map[string]CartSource, defaultProvider string) (*CartProviderRegistry, error) {
	if len(sources) == 0 {
		return nil, errors.New("cart providers: at least one source is required")
	}
	copyMap := make(map[string]CartSource, len(sources))
	for k, v := range sources {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("cart providers: invalid registration for key %q", k)
		}
		copyMap[key] = v
	}
	def := strings.TrimSpace(strings.ToLower(defaultProvider))
	if def != "" {
		if _, ok := copyMap[def]; !ok {
			return nil, fmt.Errorf("cart providers: default provider %q is not registered", defaultProvider)
		}
	}
	return &CartProviderRegistry{sources: copyMap, defaultProvider: def}, nil
}

// Source returns the cart source for the provider key, falling back to the
// default provider on a blank key.
func (r *CartProviderRegistry) Source(provider string) (string, CartSource, error) {
	if r == nil || len(r.sources) == 0 {
		return "", nil, errors.New("cart providers: registry not initialised")
	}
	key := strings.TrimSpace(strings.ToLower(provider))
	if key == "" {
		key = r.defaultProvider
	}
	if key == "" && len(r.sources) == 1 {
		for k, s := range r.sources {
			return k, s, nil
		}
	}
	if source, ok := r.sources[key]; ok {
		return key, source, nil
	}
	return "", nil, fmt.Errorf("%w: %q", ErrUnknownCartProvider, provider)
}

// repositoryCartSource adapts the cart and user repositories into a CartSource.
type repositoryCartSource struct {
	repo  repositories.CartRepository
	users repositories.UserRepository
}

// NewRepositoryCartSource builds a cart source over the webhook document store.
func NewRepositoryCartSource(repo repositories.CartRepository, users repositories.UserRepository) (CartSource, error) {
	if repo == nil {
		return nil, errors.New("cart providers: cart repository is required")
	}
	if users == nil {
		return nil, errors.New("cart providers: user repository is required")
	}
	return &repositoryCartSource{repo: repo, users: users}, nil
}

func (s *repositoryCartSource) EmailDocs(ctx context.Context, accountUserID string, emails []string) ([]CartDoc, error) {
	return s.repo.ByEmails(ctx, accountUserID, emails)
}

func (s *repositoryCartSource) IPDocs(ctx context.Context, accountUserID string, ips []string) ([]CartDoc, error) {
	return s.repo.ByIPs(ctx, accountUserID, ips)
}

// UserDocs resolves the stored profiles reachable through the provider's cart
// documents: every identifier carried on a matching cart doc feeds one
// chunked profile lookup.
func (s *repositoryCartSource) UserDocs(ctx context.Context, accountUserID string, emails []string) ([]UserProfile, error) {
	docs, err := s.repo.ByEmails(ctx, accountUserID, emails)
	if err != nil {
		return nil, err
	}
	var identifiers []string
	for _, doc := range docs {
		identifiers = append(identifiers, doc.Identifiers()...)
	}
	identifiers = domain.UniqueStrings(identifiers)
	if len(identifiers) == 0 {
		return nil, nil
	}
	return s.users.FindByIdentifiers(ctx, identifiers)
}
