package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/platform/requestctx"
	"github.com/roasworks/attribution/internal/repositories"
)

// ErrReportInvalidInput indicates the caller supplied invalid report parameters.
var ErrReportInvalidInput = errors.New("report: invalid input")

// ReportServiceDeps bundles collaborators required to construct a report service.
type ReportServiceDeps struct {
	Reports     repositories.ReportRepository
	Insights    repositories.InsightRepository
	Attribution AttributionService
	SpendStats  SpendStatsService
	Publisher   ReportPublisher
	Clock       func() time.Time
	NewRunID    func() string
}

type reportService struct {
	reports     repositories.ReportRepository
	insights    repositories.InsightRepository
	attribution AttributionService
	spendStats  SpendStatsService
	publisher   ReportPublisher
	clock       func() time.Time
	newRunID    func() string
}

var _ ReportService = (*reportService)(nil)

// NewReportService constructs the report chunker/persister and read surface.
func NewReportService(deps ReportServiceDeps) (ReportService, error) {
	if deps.Reports == nil {
		return nil, errors.New("report service: report repository is required")
	}
	if deps.Insights == nil {
		return nil, errors.New("report service: insight repository is required")
	}
	if deps.Attribution == nil {
		return nil, errors.New("report service: attribution service is required")
	}
	if deps.SpendStats == nil {
		return nil, errors.New("report service: spend stats service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = func() string { return ulid.Make().String() }
	}

	return &reportService{
		reports:     deps.Reports,
		insights:    deps.Insights,
		attribution: deps.Attribution,
		spendStats:  deps.SpendStats,
		publisher:   deps.Publisher,
		clock: func() time.Time {
			return clock().UTC()
		},
		newRunID: newRunID,
	}, nil
}

// Generate aggregates and persists a full report for one run, stamping a
// fresh run id onto the context for downstream logging.
func (s *reportService) Generate(ctx context.Context, cmd AggregateCommand) (ReportRunSummary, error) {
	runID := s.newRunID()
	ctx = requestctx.WithRun(ctx, requestctx.RunInfo{
		RunID:       runID,
		UserID:      cmd.AccountUserID,
		Date:        cmd.Date,
		AdAccountID: cmd.AdAccountID,
	})

	report, err := s.attribution.Aggregate(ctx, cmd)
	if err != nil {
		return ReportRunSummary{RunID: runID}, err
	}

	summary, err := s.Persist(ctx, PersistReportCommand{
		AccountUserID: cmd.AccountUserID,
		AdAccountID:   cmd.AdAccountID,
		Date:          cmd.Date,
		Report:        report,
	})
	summary.RunID = runID
	return summary, err
}

// Persist writes the aggregated report as its five document kinds. Chunked
// types split at the store's document ceiling; every write carries a
// deterministic doc id so re-runs fully replace the prior snapshot. Writes
// are issued in parallel and joined; a failed chunk is logged at warning and
// never blocks its siblings.
func (s *reportService) Persist(ctx context.Context, cmd PersistReportCommand) (ReportRunSummary, error) {
	account := strings.TrimSpace(cmd.AccountUserID)
	adAccount := strings.TrimSpace(cmd.AdAccountID)
	date := strings.TrimSpace(cmd.Date)
	if account == "" || adAccount == "" || date == "" {
		return ReportRunSummary{}, fmt.Errorf("%w: account, ad account, and date are required", ErrReportInvalidInput)
	}

	reportID := domain.ReportID(adAccount, date)
	updatedAt := s.clock().Unix()

	header := domain.ReportDoc{
		ReportID:    reportID,
		UserID:      account,
		Date:        date,
		AdAccountID: adAccount,
		UpdatedAt:   updatedAt,
	}

	campaigns := sortedNodes(cmd.Report.Campaigns)
	adsets := sortedNodes(cmd.Report.Adsets)
	ads := sortedNodes(cmd.Report.Ads)
	customers := append([]OrderRecord(nil), cmd.Report.Customers...)
	domain.SortOrdersByTimestamp(customers)

	var docs []domain.ReportDoc
	docs = append(docs, chunkedDocs(header, domain.ReportTypeCampaigns, campaigns)...)
	docs = append(docs, chunkedDocs(header, domain.ReportTypeAdsets, adsets)...)
	docs = append(docs, chunkedDocs(header, domain.ReportTypeAds, ads)...)

	customersDoc := header
	customersDoc.Type = domain.ReportTypeCustomers
	customersDoc.DocID = domain.SingletonDocID(adAccount, domain.ReportTypeCustomers, date)
	customersDoc.Customers = customers
	docs = append(docs, customersDoc)

	detailsDoc := header
	detailsDoc.Type = domain.ReportTypeDetails
	detailsDoc.DocID = domain.SingletonDocID(adAccount, domain.ReportTypeDetails, date)
	docs = append(docs, detailsDoc)

	logger := requestctx.Logger(ctx)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, doc := range docs {
		wg.Add(1)
		go func(doc domain.ReportDoc) {
			defer wg.Done()
			if err := s.reports.SetDoc(ctx, doc); err != nil {
				logger.Warn("report chunk write failed",
					zap.String("doc_id", doc.DocID),
					zap.String("type", doc.Type),
					zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(doc)
	}
	wg.Wait()

	summary := ReportRunSummary{
		ReportID:      reportID,
		Date:          date,
		CampaignCount: len(campaigns),
		AdsetCount:    len(adsets),
		AdCount:       len(ads),
		CustomerCount: len(customers),
		DocsWritten:   len(docs) - failed,
		DocsFailed:    failed,
	}

	if s.publisher != nil {
		messageID, err := s.publisher.PublishReportCompleted(ctx, requestctx.RunID(ctx), reportID, PersistedRunInfo{
			UserID:        account,
			AdAccountID:   adAccount,
			ReportDate:    date,
			CampaignCount: summary.CampaignCount,
			AdsetCount:    summary.AdsetCount,
			AdCount:       summary.AdCount,
			CustomerCount: summary.CustomerCount,
		})
		if err != nil {
			logger.Warn("report completion publish failed", zap.Error(err))
		} else {
			summary.MessageID = messageID
		}
	}

	return summary, nil
}

// MergedReport reads the stored docs for each date and merges them per level:
// revenue and spend fields are summed per asset across dates, then the full
// derived stat set is recomputed from the sums.
func (s *reportService) MergedReport(ctx context.Context, adAccountID string, dates []string) (AttributionReport, error) {
	if strings.TrimSpace(adAccountID) == "" || len(dates) == 0 {
		return AttributionReport{}, fmt.Errorf("%w: ad account and dates are required", ErrReportInvalidInput)
	}

	merged := AttributionReport{
		Campaigns: map[string]ReportNode{},
		Adsets:    map[string]ReportNode{},
		Ads:       map[string]ReportNode{},
	}

	for _, date := range dates {
		docs, err := s.reports.ByDate(ctx, adAccountID, date)
		if err != nil {
			return AttributionReport{}, fmt.Errorf("report: read %s: %w", date, err)
		}
		for _, doc := range docs {
			switch doc.Type {
			case domain.ReportTypeCampaigns:
				mergeNodes(merged.Campaigns, doc.Campaigns)
			case domain.ReportTypeAdsets:
				mergeNodes(merged.Adsets, doc.Adsets)
			case domain.ReportTypeAds:
				mergeNodes(merged.Ads, doc.Ads)
			case domain.ReportTypeCustomers:
				merged.Customers = append(merged.Customers, doc.Customers...)
			}
		}
	}

	return merged, nil
}

// AccountReports builds spend-side nodes for one date and level from the
// cached insight snapshots, fetching spend from the platform for assets whose
// snapshot lacks it.
func (s *reportService) AccountReports(ctx context.Context, accountUserID, adAccountID, date, assetType string) ([]ReportNode, error) {
	account := strings.TrimSpace(accountUserID)
	if account == "" || strings.TrimSpace(adAccountID) == "" || strings.TrimSpace(date) == "" || strings.TrimSpace(assetType) == "" {
		return nil, fmt.Errorf("%w: account, ad account, date, and asset type are required", ErrReportInvalidInput)
	}

	docs, err := s.insights.ByDateType(ctx, date, assetType, adAccountID)
	if err != nil {
		return nil, fmt.Errorf("report: insight read: %w", err)
	}

	nodes := make([]ReportNode, 0, len(docs))
	for _, doc := range docs {
		stats := doc.Insight
		if stats.FBSpend == 0 {
			fetched, err := s.spendStats.FetchStats(ctx, FetchStatsCommand{
				AccountUserID: account,
				AdAccountID:   adAccountID,
				Date:          date,
				AssetType:     assetType,
				Asset:         domain.AdAsset{AssetID: doc.AssetID, Details: detailsCopy(doc.Details)},
			})
			if err != nil {
				requestctx.Logger(ctx).Warn("spend backfill failed",
					zap.String("asset_id", doc.AssetID),
					zap.Error(err))
			} else {
				stats = fetched
			}
		}

		nodes = append(nodes, ReportNode{
			Type:         assetType,
			AssetID:      doc.AssetID,
			AssetName:    doc.Details.AssetName,
			CampaignID:   doc.Details.CampaignID,
			CampaignName: doc.Details.CampaignName,
			AdsetID:      doc.Details.AdsetID,
			AdsetName:    doc.Details.AdsetName,
			AdID:         doc.Details.AdID,
			AdName:       doc.Details.AdName,
			Stats:        domain.DeriveStats(stats, RevenueStats{}),
		})
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].AssetID < nodes[j].AssetID })
	return nodes, nil
}

// CustomerLedger merges stored customer docs across dates, grouping by
// lowercased email and normalizing each customer's entries to one per ad.
func (s *reportService) CustomerLedger(ctx context.Context, adAccountID string, dates []string) (map[string][]OrderRecord, error) {
	orders, err := s.storedCustomers(ctx, adAccountID, dates)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]OrderRecord)
	for _, order := range orders {
		email := strings.ToLower(order.Email)
		grouped[email] = append(grouped[email], order)
	}

	out := make(map[string][]OrderRecord, len(grouped))
	for email, entries := range grouped {
		out[email] = domain.NormalizeCustomerLedger(entries)
	}
	return out, nil
}

// ProductGroupings groups the stored customers' cart items by product name
// for the given hierarchy level ("campaign", "adset", "ad") and asset ids.
func (s *reportService) ProductGroupings(ctx context.Context, adAccountID, level string, assetIDs, dates []string) (map[string][]domain.ProductOrder, error) {
	orders, err := s.storedCustomers(ctx, adAccountID, dates)
	if err != nil {
		return nil, err
	}
	return domain.GroupCartsByProduct(level, assetIDs, orders), nil
}

func (s *reportService) storedCustomers(ctx context.Context, adAccountID string, dates []string) ([]OrderRecord, error) {
	if strings.TrimSpace(adAccountID) == "" || len(dates) == 0 {
		return nil, fmt.Errorf("%w: ad account and dates are required", ErrReportInvalidInput)
	}

	var orders []OrderRecord
	for _, date := range dates {
		docs, err := s.reports.ByDate(ctx, adAccountID, date)
		if err != nil {
			return nil, fmt.Errorf("report: read %s: %w", date, err)
		}
		for _, doc := range docs {
			if doc.Type == domain.ReportTypeCustomers {
				orders = append(orders, doc.Customers...)
			}
		}
	}
	return orders, nil
}

func sortedNodes(nodes map[string]ReportNode) []ReportNode {
	out := make([]ReportNode, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

func chunkedDocs(header domain.ReportDoc, reportType string, nodes []ReportNode) []domain.ReportDoc {
	chunks := domain.Chunk(nodes, domain.ReportChunkSize)
	if len(chunks) == 0 {
		// An empty level still writes its zeroth chunk so re-runs replace
		// any prior non-empty snapshot.
		chunks = [][]ReportNode{nil}
	}

	docs := make([]domain.ReportDoc, 0, len(chunks))
	for i, chunk := range chunks {
		doc := header
		doc.Type = reportType
		doc.DocID = domain.ReportDocID(header.AdAccountID, reportType, i, header.Date)
		switch reportType {
		case domain.ReportTypeCampaigns:
			doc.Campaigns = chunk
		case domain.ReportTypeAdsets:
			doc.Adsets = chunk
		default:
			doc.Ads = chunk
		}
		docs = append(docs, doc)
	}
	return docs
}

// mergeNodes folds a doc's nodes into the accumulator, summing both stat
// families per asset and recomputing the derived set from the sums.
func mergeNodes(into map[string]ReportNode, nodes []ReportNode) {
	for _, node := range nodes {
		existing, ok := into[node.AssetID]
		if !ok {
			node.Stats = domain.DeriveStats(nodeSpend(node.Stats), nodeRevenue(node.Stats))
			into[node.AssetID] = node
			continue
		}

		spend := domain.SumSpendStats([]SpendStats{nodeSpend(existing.Stats), nodeSpend(node.Stats)})
		revenue := domain.SumRevenueStats([]RevenueStats{nodeRevenue(existing.Stats), nodeRevenue(node.Stats)})
		existing.Stats = domain.DeriveStats(spend, revenue)
		existing.OrderItems = append(existing.OrderItems, node.OrderItems...)
		into[node.AssetID] = existing
	}
}

func nodeSpend(stats MergedStats) SpendStats {
	return SpendStats{
		FBClicks: stats.FBClicks,
		FBSpend:  stats.FBSpend,
		FBMade:   stats.FBMade,
		FBSales:  stats.FBSales,
		FBRoas:   stats.FBRoas,
		FBLeads:  stats.FBLeads,
	}
}

func nodeRevenue(stats MergedStats) RevenueStats {
	return RevenueStats{
		RoasClicks:    stats.RoasClicks,
		RoasSales:     stats.RoasSales,
		RoasCustomers: stats.RoasCustomers,
		RoasLeads:     stats.RoasLeads,
		RoasRevenue:   stats.RoasRevenue,
		RoasSpend:     stats.RoasSpend,
	}
}

func detailsCopy(details domain.AssetDetails) *domain.AssetDetails {
	copied := details
	return &copied
}
