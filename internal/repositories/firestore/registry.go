package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/roasworks/attribution/internal/platform/firestore"
	"github.com/roasworks/attribution/internal/repositories"
)

// Registry wires every Firestore-backed repository to a shared provider.
type Registry struct {
	provider *firestore.Provider

	users        *UserRepository
	carts        *CartRepository
	adCache      *AdCacheRepository
	insights     *InsightRepository
	paymentStats *PaymentStatsRepository
	reports      *ReportRepository
	health       repositories.HealthRepository
}

// NewRegistry constructs the repository registry over the given provider.
func NewRegistry(provider *firestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	adCache, err := NewAdCacheRepository(provider)
	if err != nil {
		return nil, err
	}
	insights, err := NewInsightRepository(provider)
	if err != nil {
		return nil, err
	}
	paymentStats, err := NewPaymentStatsRepository(provider)
	if err != nil {
		return nil, err
	}
	reports, err := NewReportRepository(provider)
	if err != nil {
		return nil, err
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:     provider,
		users:        users,
		carts:        carts,
		adCache:      adCache,
		insights:     insights,
		paymentStats: paymentStats,
		reports:      reports,
		health:       health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close() error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close()
}

func (r *Registry) Users() repositories.UserRepository                { return r.users }
func (r *Registry) Carts() repositories.CartRepository                { return r.carts }
func (r *Registry) AdCache() repositories.AdCacheRepository           { return r.adCache }
func (r *Registry) Insights() repositories.InsightRepository          { return r.insights }
func (r *Registry) PaymentStats() repositories.PaymentStatsRepository { return r.paymentStats }
func (r *Registry) Reports() repositories.ReportRepository            { return r.reports }
func (r *Registry) Health() repositories.HealthRepository             { return r.health }

var _ repositories.Registry = (*Registry)(nil)
