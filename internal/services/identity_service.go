package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/repositories"
)

// ErrIdentityInvalidInput indicates the caller supplied invalid resolution parameters.
var ErrIdentityInvalidInput = errors.New("identity: invalid input")

// IdentityServiceDeps bundles collaborators required to construct an identity service.
type IdentityServiceDeps struct {
	Users         repositories.UserRepository
	CartProviders *CartProviderRegistry
}

type identityService struct {
	users         repositories.UserRepository
	cartProviders *CartProviderRegistry
}

var _ IdentityService = (*identityService)(nil)

// NewIdentityService constructs the customer identity resolver.
func NewIdentityService(deps IdentityServiceDeps) (IdentityService, error) {
	if deps.Users == nil {
		return nil, errors.New("identity service: user repository is required")
	}
	if deps.CartProviders == nil {
		return nil, errors.New("identity service: cart provider registry is required")
	}
	return &identityService{
		users:         deps.Users,
		cartProviders: deps.CartProviders,
	}, nil
}

// ResolveCustomer dedupes and classifies the supplied identifiers, widens
// them with the identifier sets of matching stored profiles, and queries the
// cart store per group. The widening is what routes a customer known only by
// email to the IP lookup: stored profiles carry the IPs and alternate emails
// the ledger alone never sees. A run with no identifiers resolves to nil,
// which is a no-match, not an error.
func (s *identityService) ResolveCustomer(ctx context.Context, cmd ResolveCustomerCommand) (*CustomerIdentity, error) {
	account := strings.TrimSpace(cmd.AccountUserID)
	if account == "" {
		return nil, fmt.Errorf("%w: account user id is required", ErrIdentityInvalidInput)
	}

	identifiers := expandIdentifiers(cmd.Identifiers, cmd.KnownIDs)
	if len(identifiers) == 0 {
		return nil, nil
	}

	_, source, err := s.cartProviders.Source(cmd.CartProvider)
	if err != nil {
		return nil, err
	}

	profiles, err := s.users.FindByIdentifiers(ctx, identifiers)
	if err != nil {
		return nil, fmt.Errorf("identity: profile lookup: %w", err)
	}
	identifiers = expandIdentifiers(identifiers, profileIdentifiers(profiles))

	ipIDs, emailIDs := domain.SplitIdentifiers(domain.ClassifyIdentifiers(identifiers))

	identity := &CustomerIdentity{
		EmailIDs: emailIDs,
		IPIDs:    ipIDs,
		Profiles: profiles,
	}

	if len(emailIDs) > 0 {
		carts, err := source.EmailDocs(ctx, account, emailIDs)
		if err != nil {
			return nil, fmt.Errorf("identity: email cart lookup: %w", err)
		}
		identity.EmailCarts = carts

		cartProfiles, err := source.UserDocs(ctx, account, emailIDs)
		if err != nil {
			return nil, fmt.Errorf("identity: cart user lookup: %w", err)
		}
		identity.Profiles = mergeProfiles(profiles, cartProfiles)
	}
	if len(ipIDs) > 0 {
		carts, err := source.IPDocs(ctx, account, ipIDs)
		if err != nil {
			return nil, fmt.Errorf("identity: ip cart lookup: %w", err)
		}
		identity.IPCarts = carts
	}

	return identity, nil
}

// expandIdentifiers merges the raw identifiers with the already-known profile
// ids, expanding email-shaped values into their case variants because source
// systems are case-inconsistent.
func expandIdentifiers(identifiers, knownIDs []string) []string {
	expanded := make([]string, 0, len(identifiers)*3+len(knownIDs))
	for _, value := range identifiers {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if domain.ClassifyIdentifier(value).Kind == domain.IdentifierEmail {
			expanded = append(expanded, domain.EmailVariants(value)...)
			continue
		}
		expanded = append(expanded, value)
	}
	expanded = append(expanded, knownIDs...)
	return domain.UniqueStrings(expanded)
}

// profileIdentifiers flattens the identifier sets of the stored profiles.
func profileIdentifiers(profiles []domain.UserProfile) []string {
	var ids []string
	for _, profile := range profiles {
		ids = append(ids, profile.Email)
		ids = append(ids, profile.IDs...)
	}
	return ids
}

// mergeProfiles unions two profile sets, deduping by user id and keeping the
// first occurrence.
func mergeProfiles(primary, extra []domain.UserProfile) []domain.UserProfile {
	seen := make(map[string]struct{}, len(primary)+len(extra))
	out := make([]domain.UserProfile, 0, len(primary)+len(extra))
	for _, profile := range primary {
		if _, ok := seen[profile.UserID]; ok {
			continue
		}
		seen[profile.UserID] = struct{}{}
		out = append(out, profile)
	}
	for _, profile := range extra {
		if _, ok := seen[profile.UserID]; ok {
			continue
		}
		seen[profile.UserID] = struct{}{}
		out = append(out, profile)
	}
	return out
}
