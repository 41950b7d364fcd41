package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/platform/requestctx"
	"github.com/roasworks/attribution/internal/repositories"
)

// ErrAttributionInvalidInput indicates the caller supplied invalid run parameters.
var ErrAttributionInvalidInput = errors.New("attribution: invalid input")

// AttributionServiceDeps bundles collaborators required to construct the aggregator.
type AttributionServiceDeps struct {
	Identity   IdentityService
	Normalizer *EventNormalizer
	AdMetadata AdMetadataService
	SpendStats SpendStatsService
	Users      repositories.UserRepository
	Ledger     PaymentLedger

	DefaultWindowDays   int
	DefaultCartProvider string
	DefaultProcessor    string
}

type attributionService struct {
	identity   IdentityService
	normalizer *EventNormalizer
	adMetadata AdMetadataService
	spendStats SpendStatsService
	users      repositories.UserRepository
	ledger     PaymentLedger

	windowDays   int
	cartProvider string
	processor    string
}

var _ AttributionService = (*attributionService)(nil)

// NewAttributionService constructs the per-date attribution pipeline.
func NewAttributionService(deps AttributionServiceDeps) (AttributionService, error) {
	if deps.Identity == nil {
		return nil, errors.New("attribution service: identity service is required")
	}
	if deps.AdMetadata == nil {
		return nil, errors.New("attribution service: ad metadata service is required")
	}
	if deps.SpendStats == nil {
		return nil, errors.New("attribution service: spend stats service is required")
	}
	if deps.Users == nil {
		return nil, errors.New("attribution service: user repository is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("attribution service: payment ledger is required")
	}

	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = NewEventNormalizer()
	}
	windowDays := deps.DefaultWindowDays
	if windowDays <= 0 {
		windowDays = domain.DefaultAttributionWindowDays
	}

	return &attributionService{
		identity:     deps.Identity,
		normalizer:   normalizer,
		adMetadata:   deps.AdMetadata,
		spendStats:   deps.SpendStats,
		users:        deps.Users,
		ledger:       deps.Ledger,
		windowDays:   windowDays,
		cartProvider: strings.TrimSpace(deps.DefaultCartProvider),
		processor:    strings.TrimSpace(deps.DefaultProcessor),
	}, nil
}

// Aggregate runs the full pipeline for one (account, date, ad account) run:
// ledger read, per-customer identity resolution and event collection, dedup,
// window filter, hierarchical grouping, and stat rollup. The result is a
// best-effort report; individual resolution failures degrade to empty-id
// buckets rather than aborting the run.
func (s *attributionService) Aggregate(ctx context.Context, cmd AggregateCommand) (AttributionReport, error) {
	account := strings.TrimSpace(cmd.AccountUserID)
	adAccount := strings.TrimSpace(cmd.AdAccountID)
	date := strings.TrimSpace(cmd.Date)
	if account == "" || adAccount == "" || date == "" {
		return AttributionReport{}, fmt.Errorf("%w: account, ad account, and date are required", ErrAttributionInvalidInput)
	}

	windowDays := cmd.WindowDays
	if windowDays <= 0 {
		windowDays = s.windowDays
	}
	provider := strings.TrimSpace(cmd.CartProvider)
	if provider == "" {
		provider = s.cartProvider
	}
	processor := strings.TrimSpace(cmd.PaymentProcessor)
	if processor == "" {
		processor = s.processor
	}

	ledger, err := s.ledger.DailyStats(ctx, processor, date, account)
	if err != nil {
		return AttributionReport{}, fmt.Errorf("attribution: ledger read: %w", err)
	}

	// Customers iterate in email order so re-runs produce identical output.
	emails := make([]string, 0, len(ledger.Customers))
	for email := range ledger.Customers {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	var customers []OrderRecord
	for _, email := range emails {
		orders := s.attributeCustomer(ctx, account, date, provider, email, ledger.Customers[email])
		customers = append(customers, orders...)
	}

	// Orders outside the window stay in the customer ledger but are excluded
	// from the per-level stats.
	var windowed []OrderRecord
	for _, order := range customers {
		if domain.InsideAttributionWindow(windowDays, order) {
			windowed = append(windowed, order)
		}
	}

	report := AttributionReport{
		Campaigns: s.buildLevel(ctx, domain.ReportTypeCampaigns, account, adAccount, date, windowed),
		Adsets:    s.buildLevel(ctx, domain.ReportTypeAdsets, account, adAccount, date, windowed),
		Ads:       s.buildLevel(ctx, domain.ReportTypeAds, account, adAccount, date, windowed),
		Customers: customers,
	}
	return report, nil
}

// attributeCustomer collects the customer's three event streams, dedupes by
// ad id under ascending timestamps, resolves hierarchy metadata, and emits
// one order per attributed ad. A customer with no attributable events still
// yields one record with empty id fields.
func (s *attributionService) attributeCustomer(ctx context.Context, account, date, provider, email string, ledgerRecord OrderRecord) []OrderRecord {
	logger := requestctx.Logger(ctx)

	identity, err := s.identity.ResolveCustomer(ctx, ResolveCustomerCommand{
		AccountUserID: account,
		CartProvider:  provider,
		Identifiers:   []string{email},
	})
	if err != nil {
		logger.Warn("customer identity resolution failed",
			zap.String("email", email),
			zap.Error(err))
	}

	var events []AttributedEvent
	if identity != nil {
		events = s.collectStreams(ctx, provider, email, identity)
	}

	deduped := lastWriteWinsByAd(events)

	if len(deduped) == 0 {
		return []OrderRecord{newLedgerOrder(email, date, ledgerRecord, ledgerRecord.Timestamp, AdAsset{})}
	}

	adIDs := make([]string, 0, len(deduped))
	for _, event := range deduped {
		adIDs = append(adIDs, event.AdID)
	}
	resolutions := s.adMetadata.ResolveAll(ctx, account, date, adIDs)

	orders := make([]OrderRecord, 0, len(deduped))
	for i, event := range deduped {
		asset := resolutions[i].Asset
		if resolutions[i].Failed() {
			logger.Warn("ad resolution failed",
				zap.String("ad_id", resolutions[i].AdID),
				zap.Error(resolutions[i].Err))
			asset = AdAsset{AssetID: event.AdID, AdID: event.AdID}
		}
		// Degenerate assets keep their ad-level bucket; parent levels stay empty.
		if asset.AdID == "" && asset.AssetID != "" {
			asset.AdID = asset.AssetID
		}
		orders = append(orders, newLedgerOrder(email, date, ledgerRecord, event.Timestamp, asset))
	}
	return orders
}

// collectStreams gathers the three provenance-tagged event streams in
// parallel and joins them all; a failed stream degrades to an empty sequence.
func (s *attributionService) collectStreams(ctx context.Context, provider, email string, identity *CustomerIdentity) []AttributedEvent {
	logger := requestctx.Logger(ctx)
	streams := make([][]AttributedEvent, 3)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		var raw []RawEvent
		for _, profile := range identity.Profiles {
			events, err := s.users.Events(ctx, profile.UserID)
			if err != nil {
				logger.Warn("user event stream failed",
					zap.String("profile_id", profile.UserID),
					zap.Error(err))
				continue
			}
			raw = append(raw, events...)
		}
		streams[0] = s.tagStream(raw, "user_events_response", email)
	}()

	go func() {
		defer wg.Done()
		streams[1] = s.tagStream(cartEvents(identity.IPCarts), provider+"_ip_response", email)
	}()

	go func() {
		defer wg.Done()
		streams[2] = s.tagStream(cartEvents(identity.EmailCarts), provider+"_email_response", email)
	}()

	wg.Wait()

	var joined []AttributedEvent
	for _, stream := range streams {
		joined = append(joined, stream...)
	}
	return joined
}

func (s *attributionService) tagStream(raw []RawEvent, from, email string) []AttributedEvent {
	normalized := s.normalizer.NormalizeAll(raw)
	out := make([]AttributedEvent, 0, len(normalized))
	for _, event := range normalized {
		out = append(out, AttributedEvent{
			NormalizedEvent: event,
			From:            from,
			Email:           email,
		})
	}
	return out
}

// buildLevel groups windowed orders by the level's id, merges each group with
// its cached spend snapshot, and derives the full stat set. Orders lacking
// the level's id land in an explicit empty-id bucket.
func (s *attributionService) buildLevel(ctx context.Context, reportType, account, adAccount, date string, orders []OrderRecord) map[string]ReportNode {
	logger := requestctx.Logger(ctx)

	spend, err := s.spendStats.CachedStats(ctx, date, reportType, adAccount)
	if err != nil {
		logger.Warn("cached spend read failed",
			zap.String("type", reportType),
			zap.Error(err))
		spend = map[string]SpendStats{}
	}

	groups := make(map[string][]OrderRecord)
	for _, order := range orders {
		id := levelID(reportType, order)
		groups[id] = append(groups[id], order)
	}

	nodes := make(map[string]ReportNode, len(groups))
	for id, group := range groups {
		spendStats, ok := spend[id]
		if !ok && id != "" {
			fetched, err := s.spendStats.FetchStats(ctx, FetchStatsCommand{
				AccountUserID: account,
				AdAccountID:   adAccount,
				Date:          date,
				AssetType:     reportType,
				Asset:         AdAsset{AssetID: id},
			})
			if err != nil {
				logger.Warn("spend fetch failed",
					zap.String("type", reportType),
					zap.String("asset_id", id),
					zap.Error(err))
			} else {
				spendStats = fetched
			}
		}

		node := ReportNode{
			Type:       reportType,
			AssetID:    id,
			Stats:      domain.DeriveStats(spendStats, domain.GroupRevenueStats(group)),
			OrderItems: group,
		}
		fillNodeIdentity(&node, reportType, group[0])
		nodes[id] = node
	}
	return nodes
}

// lastWriteWinsByAd sorts ascending by timestamp and keeps the most recent
// entry per ad id, preserving ascending order in the output.
func lastWriteWinsByAd(events []AttributedEvent) []AttributedEvent {
	if len(events) == 0 {
		return nil
	}
	sorted := make([]AttributedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	last := make(map[string]int, len(sorted))
	for i, event := range sorted {
		last[event.AdID] = i
	}

	out := make([]AttributedEvent, 0, len(last))
	for i, event := range sorted {
		if last[event.AdID] == i {
			out = append(out, event)
		}
	}
	return out
}

func cartEvents(docs []CartDoc) []RawEvent {
	out := make([]RawEvent, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.RawEvent)
	}
	return out
}

// newLedgerOrder attaches one attributed ad to the customer's ledger record.
// A zero asset leaves the hierarchy fields empty.
func newLedgerOrder(email, date string, ledgerRecord OrderRecord, timestamp int64, asset AdAsset) OrderRecord {
	cart := ledgerRecord.Cart
	ts := timestamp
	if ts == 0 {
		ts = ledgerRecord.Timestamp
	}
	return OrderRecord{
		Email:      email,
		Timestamp:  ts,
		ReportDate: date,
		Cart:       cart,
		Stats: RevenueStats{
			RoasRevenue: domain.Fixed3(domain.CartTotal(cart)),
			RoasSales:   float64(len(cart)),
		},
		CampaignID:   asset.CampaignID,
		CampaignName: asset.CampaignName,
		AdsetID:      asset.AdsetID,
		AdsetName:    asset.AdsetName,
		AdID:         asset.AdID,
		AdName:       asset.AdName,
	}
}

func levelID(reportType string, order OrderRecord) string {
	switch reportType {
	case domain.ReportTypeCampaigns:
		return order.CampaignID
	case domain.ReportTypeAdsets:
		return order.AdsetID
	default:
		return order.AdID
	}
}

func fillNodeIdentity(node *ReportNode, reportType string, order OrderRecord) {
	node.CampaignID = order.CampaignID
	node.CampaignName = order.CampaignName
	switch reportType {
	case domain.ReportTypeCampaigns:
		node.AssetName = order.CampaignName
	case domain.ReportTypeAdsets:
		node.AdsetID = order.AdsetID
		node.AdsetName = order.AdsetName
		node.AssetName = order.AdsetName
	default:
		node.AdsetID = order.AdsetID
		node.AdsetName = order.AdsetName
		node.AdID = order.AdID
		node.AdName = order.AdName
		node.AssetName = order.AdName
	}
}
