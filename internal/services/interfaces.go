package services

import (
	"context"

	"github.com/roasworks/attribution/internal/adplatform"
	domain "github.com/roasworks/attribution/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Identifier        = domain.Identifier
	RawEvent          = domain.RawEvent
	NormalizedEvent   = domain.NormalizedEvent
	AdAsset           = domain.AdAsset
	AdResolution      = domain.AdResolution
	SpendStats        = domain.SpendStats
	RevenueStats      = domain.RevenueStats
	MergedStats       = domain.MergedStats
	OrderRecord       = domain.OrderRecord
	AttributedEvent   = domain.AttributedEvent
	ReportNode        = domain.ReportNode
	AttributionReport = domain.AttributionReport
	UserProfile       = domain.UserProfile
	CartDoc           = domain.CartDoc
	InsightDoc        = domain.InsightDoc

	SystemHealthReport = domain.SystemHealthReport
)

// AdPlatformClient is the narrow surface of the ad platform consumed by the
// resolver and the spend-stats calculator.
type AdPlatformClient interface {
	GetAd(ctx context.Context, adID string) (adplatform.Ad, error)
	GetAdset(ctx context.Context, adsetID string) (adplatform.NamedAsset, error)
	GetCampaign(ctx context.Context, campaignID string) (adplatform.NamedAsset, error)
	GetInsights(ctx context.Context, assetID, date string) (domain.SpendStats, error)
}

// CartSource is the per-provider capability set for shopping-cart lookups.
// Implementations are selected by provider key, never by type dispatch.
type CartSource interface {
	EmailDocs(ctx context.Context, accountUserID string, emails []string) ([]CartDoc, error)
	IPDocs(ctx context.Context, accountUserID string, ips []string) ([]CartDoc, error)
	// UserDocs returns the stored profiles reachable through the provider's
	// cart documents for the given emails.
	UserDocs(ctx context.Context, accountUserID string, emails []string) ([]UserProfile, error)
}

// PaymentLedger supplies the processor-side customer ledger for a date.
type PaymentLedger interface {
	DailyStats(ctx context.Context, processor, date, accountUserID string) (domain.PaymentStatsDoc, error)
}

// ReportPublisher emits a lifecycle event after a report run is persisted.
type ReportPublisher interface {
	PublishReportCompleted(ctx context.Context, runID, reportID string, cmd PersistedRunInfo) (string, error)
}

// PersistedRunInfo carries the counts stamped on the completion event.
type PersistedRunInfo struct {
	UserID        string
	AdAccountID   string
	ReportDate    string
	CampaignCount int
	AdsetCount    int
	AdCount       int
	CustomerCount int
}

// CustomerIdentity is the resolved view of one customer across stores.
// A nil identity means no identifiers were supplied, which is not an error.
type CustomerIdentity struct {
	EmailIDs   []string
	IPIDs      []string
	Profiles   []UserProfile
	EmailCarts []CartDoc
	IPCarts    []CartDoc
}

// ResolveCustomerCommand names the inputs of one identity resolution.
type ResolveCustomerCommand struct {
	AccountUserID string
	CartProvider  string
	Identifiers   []string
	KnownIDs      []string
}

// IdentityService resolves scattered raw identifiers to stored profiles and
// cart documents scoped to one account.
type IdentityService interface {
	ResolveCustomer(ctx context.Context, cmd ResolveCustomerCommand) (*CustomerIdentity, error)
}

// AdMetadataService resolves ad ids to full hierarchy snapshots, cache first.
type AdMetadataService interface {
	Resolve(ctx context.Context, accountUserID, date, adID string) AdResolution
	ResolveAll(ctx context.Context, accountUserID, date string, adIDs []string) []AdResolution
}

// FetchStatsCommand scopes one platform insights fetch.
type FetchStatsCommand struct {
	AccountUserID string
	AdAccountID   string
	Date          string
	AssetType     string
	Asset         AdAsset
}

// SpendStatsService reads cached spend snapshots and fetches fresh ones from
// the ad platform, writing fetched snapshots back.
type SpendStatsService interface {
	CachedStats(ctx context.Context, date, assetType, adAccountID string) (map[string]SpendStats, error)
	FetchStats(ctx context.Context, cmd FetchStatsCommand) (SpendStats, error)
	RangeStats(ctx context.Context, adAccountID, assetType string, dates []string) (SpendStats, error)
}

// AggregateCommand scopes one attribution run.
type AggregateCommand struct {
	AccountUserID    string
	AdAccountID      string
	Date             string
	WindowDays       int
	CartProvider     string
	PaymentProcessor string
}

// AttributionService runs the full per-date attribution pipeline.
type AttributionService interface {
	Aggregate(ctx context.Context, cmd AggregateCommand) (AttributionReport, error)
}

// PersistReportCommand scopes one report write.
type PersistReportCommand struct {
	AccountUserID string
	AdAccountID   string
	Date          string
	Report        AttributionReport
}

// ReportRunSummary is returned after a persisted run.
type ReportRunSummary struct {
	RunID         string
	ReportID      string
	Date          string
	CampaignCount int
	AdsetCount    int
	AdCount       int
	CustomerCount int
	DocsWritten   int
	DocsFailed    int
	MessageID     string
}

// ReportService persists aggregated reports and serves stored report reads.
type ReportService interface {
	// Generate aggregates and persists a full report for one run.
	Generate(ctx context.Context, cmd AggregateCommand) (ReportRunSummary, error)
	// Persist writes an already aggregated report.
	Persist(ctx context.Context, cmd PersistReportCommand) (ReportRunSummary, error)
	// MergedReport reads stored report docs across dates and merges them per
	// hierarchy level, recomputing derived stats.
	MergedReport(ctx context.Context, adAccountID string, dates []string) (AttributionReport, error)
	// AccountReports builds spend-side report nodes for one date from cached
	// insight snapshots, fetching missing spend from the platform.
	AccountReports(ctx context.Context, accountUserID, adAccountID, date, assetType string) ([]ReportNode, error)
	// CustomerLedger merges stored customer docs across dates, one normalized
	// entry set per lowercased email.
	CustomerLedger(ctx context.Context, adAccountID string, dates []string) (map[string][]OrderRecord, error)
	// ProductGroupings groups the ledger's cart items by product name for the
	// given hierarchy level and asset ids.
	ProductGroupings(ctx context.Context, adAccountID, level string, assetIDs, dates []string) (map[string][]domain.ProductOrder, error)
}

// SystemService exposes operational health reporting.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
