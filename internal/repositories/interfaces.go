package repositories

import (
	"context"

	domain "github.com/roasworks/attribution/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close() error

	Users() UserRepository
	Carts() CartRepository
	AdCache() AdCacheRepository
	Insights() InsightRepository
	PaymentStats() PaymentStatsRepository
	Reports() ReportRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UserRepository resolves stored customer profiles and their captured events.
type UserRepository interface {
	// FindByIdentifiers returns every profile whose identifier set intersects
	// the given values. Lookups are split internally to respect query limits.
	FindByIdentifiers(ctx context.Context, identifiers []string) ([]domain.UserProfile, error)
	// Events lists the raw tracking events captured under one profile.
	Events(ctx context.Context, profileID string) ([]domain.RawEvent, error)
}

// CartRepository reads shopping-cart webhook documents scoped to an account.
type CartRepository interface {
	ByEmails(ctx context.Context, accountUserID string, emails []string) ([]domain.CartDoc, error)
	ByIPs(ctx context.Context, accountUserID string, ips []string) ([]domain.CartDoc, error)
}

// AdCacheRepository persists resolved ad hierarchy snapshots per account.
type AdCacheRepository interface {
	// Get returns the cached asset for the ad. The boolean reports presence.
	Get(ctx context.Context, accountUserID, adID string) (domain.AdAsset, bool, error)
	// Put upserts the asset snapshot under the account's cache.
	Put(ctx context.Context, accountUserID, date string, asset domain.AdAsset) error
}

// InsightRepository reads and writes per-asset spend snapshots.
type InsightRepository interface {
	// ByDateType lists every insight doc for a date, a hierarchy level, and an
	// ad account, across all owning accounts.
	ByDateType(ctx context.Context, date, assetType, adAccountID string) ([]domain.InsightDoc, error)
	// Put upserts a single insight snapshot under the account's cache.
	Put(ctx context.Context, accountUserID string, doc domain.InsightDoc) error
}

// PaymentStatsRepository reads processor-side customer aggregates.
type PaymentStatsRepository interface {
	// StatsDoc returns the aggregate doc for the date, or a zero value when
	// none exists. A missing doc is not an error.
	StatsDoc(ctx context.Context, processor, date, accountUserID string) (domain.PaymentStatsDoc, error)
}

// ReportRepository persists finished report documents.
type ReportRepository interface {
	// SetDoc overwrites the report document under its doc id.
	SetDoc(ctx context.Context, doc domain.ReportDoc) error
	// Get fetches one report document by doc id.
	Get(ctx context.Context, docID string) (domain.ReportDoc, error)
	// ByDate lists the report documents written for an ad account and date.
	ByDate(ctx context.Context, adAccountID, date string) ([]domain.ReportDoc, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
