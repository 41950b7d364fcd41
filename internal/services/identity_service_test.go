package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/roasworks/attribution/internal/domain"
)

type stubUserRepository struct {
	findFn    func(context.Context, []string) ([]domain.UserProfile, error)
	eventsFn  func(context.Context, string) ([]domain.RawEvent, error)
	findCalls [][]string
}

func (s *stubUserRepository) FindByIdentifiers(ctx context.Context, identifiers []string) ([]domain.UserProfile, error) {
	s.findCalls = append(s.findCalls, identifiers)
	if s.findFn != nil {
		return s.findFn(ctx, identifiers)
	}
	return nil, nil
}

func (s *stubUserRepository) Events(ctx context.Context, profileID string) ([]domain.RawEvent, error) {
	if s.eventsFn != nil {
		return s.eventsFn(ctx, profileID)
	}
	return nil, nil
}

type stubCartSource struct {
	emailFn    func(context.Context, string, []string) ([]domain.CartDoc, error)
	ipFn       func(context.Context, string, []string) ([]domain.CartDoc, error)
	userFn     func(context.Context, string, []string) ([]domain.UserProfile, error)
	emailCalls [][]string
	ipCalls    [][]string
	userCalls  [][]string
}

func (s *stubCartSource) EmailDocs(ctx context.Context, accountUserID string, emails []string) ([]domain.CartDoc, error) {
	s.emailCalls = append(s.emailCalls, emails)
	if s.emailFn != nil {
		return s.emailFn(ctx, accountUserID, emails)
	}
	return nil, nil
}

func (s *stubCartSource) IPDocs(ctx context.Context, accountUserID string, ips []string) ([]domain.CartDoc, error) {
	s.ipCalls = append(s.ipCalls, ips)
	if s.ipFn != nil {
		return s.ipFn(ctx, accountUserID, ips)
	}
	return nil, nil
}

func (s *stubCartSource) UserDocs(ctx context.Context, accountUserID string, emails []string) ([]domain.UserProfile, error) {
	s.userCalls = append(s.userCalls, emails)
	if s.userFn != nil {
		return s.userFn(ctx, accountUserID, emails)
	}
	return nil, nil
}

func newTestRegistry(t *testing.T, source CartSource) *CartProviderRegistry {
	t.Helper()
	registry, err := NewCartProviderRegistry(map[string]CartSource{"clickfunnels_webhook": source}, "clickfunnels_webhook")
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func TestResolveCustomerSplitsAndQueries(t *testing.T) {
	users := &stubUserRepository{
		findFn: func(ctx context.Context, identifiers []string) ([]domain.UserProfile, error) {
			return []domain.UserProfile{{UserID: "u1", Email: "jane@example.com"}}, nil
		},
	}
	carts := &stubCartSource{
		emailFn: func(ctx context.Context, account string, emails []string) ([]domain.CartDoc, error) {
			return []domain.CartDoc{{AccountUserID: account, Email: emails[0]}}, nil
		},
		ipFn: func(ctx context.Context, account string, ips []string) ([]domain.CartDoc, error) {
			return []domain.CartDoc{{AccountUserID: account, IP: ips[0]}}, nil
		},
	}

	svc, err := NewIdentityService(IdentityServiceDeps{Users: users, CartProviders: newTestRegistry(t, carts)})
	if err != nil {
		t.Fatalf("new identity service: %v", err)
	}

	identity, err := svc.ResolveCustomer(context.Background(), ResolveCustomerCommand{
		AccountUserID: "acct1",
		Identifiers:   []string{"Jane@Example.com", "192.168.0.1"},
	})
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	if identity == nil {
		t.Fatalf("expected a resolved identity")
	}

	if len(identity.EmailIDs) != 3 {
		t.Fatalf("expected original plus case variants, got %v", identity.EmailIDs)
	}
	if len(identity.IPIDs) != 1 || identity.IPIDs[0] != "192.168.0.1" {
		t.Fatalf("unexpected ip ids: %v", identity.IPIDs)
	}
	if len(identity.Profiles) != 1 || identity.Profiles[0].UserID != "u1" {
		t.Fatalf("unexpected profiles: %+v", identity.Profiles)
	}
	if len(identity.EmailCarts) != 1 || len(identity.IPCarts) != 1 {
		t.Fatalf("expected one cart doc per stream")
	}

	if len(carts.emailCalls) != 1 || len(carts.emailCalls[0]) != 3 {
		t.Fatalf("expected one email lookup with variants, got %v", carts.emailCalls)
	}
	if len(users.findCalls) != 1 || len(users.findCalls[0]) != 4 {
		t.Fatalf("expected profile lookup over all identifiers, got %v", users.findCalls)
	}
}

func TestResolveCustomerWidensWithProfileIDs(t *testing.T) {
	users := &stubUserRepository{
		findFn: func(ctx context.Context, identifiers []string) ([]domain.UserProfile, error) {
			return []domain.UserProfile{{
				UserID: "u1",
				Email:  "jane@example.com",
				IDs:    []string{"jane@example.com", "9.9.9.9"},
			}}, nil
		},
	}
	carts := &stubCartSource{
		ipFn: func(ctx context.Context, account string, ips []string) ([]domain.CartDoc, error) {
			return []domain.CartDoc{{AccountUserID: account, IP: ips[0]}}, nil
		},
	}

	svc, err := NewIdentityService(IdentityServiceDeps{Users: users, CartProviders: newTestRegistry(t, carts)})
	if err != nil {
		t.Fatalf("new identity service: %v", err)
	}

	// The caller only knows the email; the stored profile contributes the IP.
	identity, err := svc.ResolveCustomer(context.Background(), ResolveCustomerCommand{
		AccountUserID: "acct1",
		Identifiers:   []string{"jane@example.com"},
	})
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	if identity == nil {
		t.Fatalf("expected a resolved identity")
	}

	if len(identity.IPIDs) != 1 || identity.IPIDs[0] != "9.9.9.9" {
		t.Fatalf("expected profile ip in the split, got %v", identity.IPIDs)
	}
	if len(carts.ipCalls) != 1 || len(carts.ipCalls[0]) != 1 || carts.ipCalls[0][0] != "9.9.9.9" {
		t.Fatalf("expected one ip cart lookup with the profile ip, got %v", carts.ipCalls)
	}
	if len(identity.IPCarts) != 1 {
		t.Fatalf("expected the ip cart doc, got %v", identity.IPCarts)
	}
}

func TestResolveCustomerMergesCartUserDocs(t *testing.T) {
	users := &stubUserRepository{
		findFn: func(ctx context.Context, identifiers []string) ([]domain.UserProfile, error) {
			return []domain.UserProfile{{UserID: "u1", Email: "jane@example.com"}}, nil
		},
	}
	carts := &stubCartSource{
		userFn: func(ctx context.Context, account string, emails []string) ([]domain.UserProfile, error) {
			return []domain.UserProfile{
				{UserID: "u1", Email: "jane@example.com"},
				{UserID: "u2", Email: "jane@other.example"},
			}, nil
		},
	}

	svc, err := NewIdentityService(IdentityServiceDeps{Users: users, CartProviders: newTestRegistry(t, carts)})
	if err != nil {
		t.Fatalf("new identity service: %v", err)
	}

	identity, err := svc.ResolveCustomer(context.Background(), ResolveCustomerCommand{
		AccountUserID: "acct1",
		Identifiers:   []string{"jane@example.com"},
	})
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}

	if len(carts.userCalls) != 1 {
		t.Fatalf("expected one cart user lookup, got %v", carts.userCalls)
	}
	if len(identity.Profiles) != 2 {
		t.Fatalf("expected deduped union of profiles, got %+v", identity.Profiles)
	}
	if identity.Profiles[0].UserID != "u1" || identity.Profiles[1].UserID != "u2" {
		t.Fatalf("unexpected profile order: %+v", identity.Profiles)
	}
}

func TestResolveCustomerNoIdentifiersIsNoMatch(t *testing.T) {
	svc, err := NewIdentityService(IdentityServiceDeps{
		Users:         &stubUserRepository{},
		CartProviders: newTestRegistry(t, &stubCartSource{}),
	})
	if err != nil {
		t.Fatalf("new identity service: %v", err)
	}

	identity, err := svc.ResolveCustomer(context.Background(), ResolveCustomerCommand{AccountUserID: "acct1"})
	if err != nil {
		t.Fatalf("resolve customer: %v", err)
	}
	if identity != nil {
		t.Fatalf("expected nil identity for empty identifier set, got %+v", identity)
	}
}

func TestResolveCustomerRequiresAccount(t *testing.T) {
	svc, err := NewIdentityService(IdentityServiceDeps{
		Users:         &stubUserRepository{},
		CartProviders: newTestRegistry(t, &stubCartSource{}),
	})
	if err != nil {
		t.Fatalf("new identity service: %v", err)
	}

	_, err = svc.ResolveCustomer(context.Background(), ResolveCustomerCommand{Identifiers: []string{"a@b.com"}})
	if !errors.Is(err, ErrIdentityInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestResolveCustomerUnknownProvider(t *testing.T) {
	svc, err := NewIdentityService(IdentityServiceDeps{
		Users:         &stubUserRepository{},
		CartProviders: newTestRegistry(t, &stubCartSource{}),
	})
	if err != nil {
		t.Fatalf("new identity service: %v", err)
	}

	_, err = svc.ResolveCustomer(context.Background(), ResolveCustomerCommand{
		AccountUserID: "acct1",
		CartProvider:  "shopify_webhook",
		Identifiers:   []string{"a@b.com"},
	})
	if !errors.Is(err, ErrUnknownCartProvider) {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}
