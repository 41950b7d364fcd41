package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	domain "github.com/roasworks/attribution/internal/domain"
)

type stubReportRepository struct {
	mu       sync.Mutex
	setErrFn func(domain.ReportDoc) error
	byDateFn func(context.Context, string, string) ([]domain.ReportDoc, error)
	setCalls []domain.ReportDoc
}

func (s *stubReportRepository) SetDoc(ctx context.Context, doc domain.ReportDoc) error {
	s.mu.Lock()
	s.setCalls = append(s.setCalls, doc)
	s.mu.Unlock()
	if s.setErrFn != nil {
		return s.setErrFn(doc)
	}
	return nil
}

func (s *stubReportRepository) Get(ctx context.Context, docID string) (domain.ReportDoc, error) {
	return domain.ReportDoc{}, errors.New("not implemented")
}

func (s *stubReportRepository) ByDate(ctx context.Context, adAccountID, date string) ([]domain.ReportDoc, error) {
	if s.byDateFn != nil {
		return s.byDateFn(ctx, adAccountID, date)
	}
	return nil, nil
}

type stubAttributionService struct {
	report AttributionReport
	err    error
}

func (s *stubAttributionService) Aggregate(ctx context.Context, cmd AggregateCommand) (AttributionReport, error) {
	return s.report, s.err
}

type stubPublisher struct {
	mu     sync.Mutex
	calls  []PersistedRunInfo
	runIDs []string
	err    error
}

func (s *stubPublisher) PublishReportCompleted(ctx context.Context, runID, reportID string, info PersistedRunInfo) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, info)
	s.runIDs = append(s.runIDs, runID)
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return "msg-1", nil
}

func newReportService(t *testing.T, deps ReportServiceDeps) ReportService {
	t.Helper()
	if deps.Reports == nil {
		deps.Reports = &stubReportRepository{}
	}
	if deps.Insights == nil {
		deps.Insights = &stubInsightRepository{}
	}
	if deps.Attribution == nil {
		deps.Attribution = &stubAttributionService{}
	}
	if deps.SpendStats == nil {
		deps.SpendStats = &stubSpendStatsService{}
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Date(2022, 4, 26, 12, 0, 0, 0, time.UTC) }
	}
	svc, err := NewReportService(deps)
	if err != nil {
		t.Fatalf("new report service: %v", err)
	}
	return svc
}

func manyNodes(count int) map[string]ReportNode {
	nodes := make(map[string]ReportNode, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("c%04d", i)
		nodes[id] = ReportNode{Type: domain.ReportTypeCampaigns, AssetID: id}
	}
	return nodes
}

func TestPersistChunksOversizedLevels(t *testing.T) {
	repo := &stubReportRepository{}
	svc := newReportService(t, ReportServiceDeps{Reports: repo})

	summary, err := svc.Persist(context.Background(), PersistReportCommand{
		AccountUserID: "acct1",
		AdAccountID:   "act_1",
		Date:          "2022-04-26",
		Report:        AttributionReport{Campaigns: manyNodes(1200)},
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if summary.CampaignCount != 1200 {
		t.Fatalf("unexpected campaign count %d", summary.CampaignCount)
	}

	var campaignSizes []int
	var campaignIDs []string
	for _, doc := range repo.setCalls {
		if doc.Type == domain.ReportTypeCampaigns {
			campaignSizes = append(campaignSizes, len(doc.Campaigns))
			campaignIDs = append(campaignIDs, doc.DocID)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(campaignSizes)))
	if !reflect.DeepEqual(campaignSizes, []int{500, 500, 200}) {
		t.Fatalf("expected chunks of 500/500/200, got %v", campaignSizes)
	}
	sort.Strings(campaignIDs)
	want := []string{"act_1campaigns020220426", "act_1campaigns120220426", "act_1campaigns220220426"}
	if !reflect.DeepEqual(campaignIDs, want) {
		t.Fatalf("unexpected doc ids: %v", campaignIDs)
	}

	// Empty levels still write their zeroth chunk plus the two singletons.
	if len(repo.setCalls) != 3+1+1+2 {
		t.Fatalf("expected 7 docs, got %d", len(repo.setCalls))
	}
}

func TestPersistIsIdempotent(t *testing.T) {
	report := AttributionReport{
		Campaigns: map[string]ReportNode{"c1": {Type: domain.ReportTypeCampaigns, AssetID: "c1"}},
		Customers: []OrderRecord{
			{Email: "b@b.com", Timestamp: 20},
			{Email: "a@a.com", Timestamp: 10},
		},
	}
	cmd := PersistReportCommand{AccountUserID: "acct1", AdAccountID: "act_1", Date: "2022-04-26", Report: report}

	run := func() []domain.ReportDoc {
		repo := &stubReportRepository{}
		svc := newReportService(t, ReportServiceDeps{Reports: repo})
		if _, err := svc.Persist(context.Background(), cmd); err != nil {
			t.Fatalf("persist: %v", err)
		}
		sort.Slice(repo.setCalls, func(i, j int) bool { return repo.setCalls[i].DocID < repo.setCalls[j].DocID })
		return repo.setCalls
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical docs across runs")
	}

	for _, doc := range first {
		if doc.Type == domain.ReportTypeCustomers {
			if doc.Customers[0].Email != "a@a.com" {
				t.Fatalf("expected customers sorted by timestamp, got %+v", doc.Customers)
			}
		}
	}
}

func TestPersistChunkFailureDoesNotBlockSiblings(t *testing.T) {
	repo := &stubReportRepository{
		setErrFn: func(doc domain.ReportDoc) error {
			if doc.Type == domain.ReportTypeAdsets {
				return errors.New("unavailable")
			}
			return nil
		},
	}
	svc := newReportService(t, ReportServiceDeps{Reports: repo})

	summary, err := svc.Persist(context.Background(), PersistReportCommand{
		AccountUserID: "acct1",
		AdAccountID:   "act_1",
		Date:          "2022-04-26",
		Report:        AttributionReport{},
	})
	if err != nil {
		t.Fatalf("a failed chunk must not fail the run: %v", err)
	}
	if summary.DocsFailed != 1 {
		t.Fatalf("expected 1 failed doc, got %d", summary.DocsFailed)
	}
	if summary.DocsWritten != 4 {
		t.Fatalf("expected 4 written docs, got %d", summary.DocsWritten)
	}
}

func TestGeneratePublishesCompletion(t *testing.T) {
	publisher := &stubPublisher{}
	attribution := &stubAttributionService{report: AttributionReport{
		Campaigns: map[string]ReportNode{"c1": {AssetID: "c1"}},
		Customers: []OrderRecord{{Email: "a@b.com"}},
	}}
	svc := newReportService(t, ReportServiceDeps{
		Attribution: attribution,
		Publisher:   publisher,
		NewRunID:    func() string { return "run-1" },
	})

	summary, err := svc.Generate(context.Background(), AggregateCommand{
		AccountUserID: "acct1",
		AdAccountID:   "act_1",
		Date:          "2022-04-26",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.RunID != "run-1" {
		t.Fatalf("unexpected run id %q", summary.RunID)
	}
	if summary.MessageID != "msg-1" {
		t.Fatalf("expected publish message id, got %q", summary.MessageID)
	}

	if len(publisher.calls) != 1 {
		t.Fatalf("expected one publish, got %d", len(publisher.calls))
	}
	info := publisher.calls[0]
	if info.CampaignCount != 1 || info.CustomerCount != 1 || info.ReportDate != "2022-04-26" {
		t.Fatalf("unexpected publish info: %+v", info)
	}
	if publisher.runIDs[0] != "run-1" {
		t.Fatalf("expected run id on publish, got %q", publisher.runIDs[0])
	}
}

func TestPersistPublishFailureIsNonFatal(t *testing.T) {
	publisher := &stubPublisher{err: errors.New("broker down")}
	svc := newReportService(t, ReportServiceDeps{Publisher: publisher})

	summary, err := svc.Persist(context.Background(), PersistReportCommand{
		AccountUserID: "acct1",
		AdAccountID:   "act_1",
		Date:          "2022-04-26",
		Report:        AttributionReport{},
	})
	if err != nil {
		t.Fatalf("publish failure must not fail the run: %v", err)
	}
	if summary.MessageID != "" {
		t.Fatalf("expected no message id, got %q", summary.MessageID)
	}
}

func TestMergedReportSumsAcrossDates(t *testing.T) {
	repo := &stubReportRepository{
		byDateFn: func(ctx context.Context, adAccountID, date string) ([]domain.ReportDoc, error) {
			node := ReportNode{
				AssetID: "c1",
				Stats:   domain.MergedStats{FBSpend: 10, RoasRevenue: 30, RoasCustomers: 1, RoasSales: 2},
			}
			return []domain.ReportDoc{
				{Type: domain.ReportTypeCampaigns, Campaigns: []ReportNode{node}},
				{Type: domain.ReportTypeCustomers, Customers: []OrderRecord{{Email: "a@b.com", ReportDate: date}}},
			}, nil
		},
	}
	svc := newReportService(t, ReportServiceDeps{Reports: repo})

	merged, err := svc.MergedReport(context.Background(), "act_1", []string{"2022-04-25", "2022-04-26"})
	if err != nil {
		t.Fatalf("merged report: %v", err)
	}

	node, ok := merged.Campaigns["c1"]
	if !ok {
		t.Fatalf("expected merged campaign node, got %v", merged.Campaigns)
	}
	if node.Stats.FBSpend != 20 || node.Stats.RoasRevenue != 60 || node.Stats.RoasCustomers != 2 {
		t.Fatalf("unexpected merged stats: %+v", node.Stats)
	}
	if node.Stats.Roas != domain.Fixed3(60.0/20.0) {
		t.Fatalf("expected derived roas recomputed from sums, got %v", node.Stats.Roas)
	}
	if len(merged.Customers) != 2 {
		t.Fatalf("expected customers from both dates, got %d", len(merged.Customers))
	}
}

func TestAccountReportsBackfillsMissingSpend(t *testing.T) {
	insights := &stubInsightRepository{
		byDateFn: func(ctx context.Context, date, assetType, adAccountID string) ([]domain.InsightDoc, error) {
			return []domain.InsightDoc{
				{AssetID: "a1", Insight: domain.SpendStats{FBSpend: 5}, Details: domain.AssetDetails{AssetID: "a1", AssetName: "Ad One"}},
				{AssetID: "a2", Details: domain.AssetDetails{AssetID: "a2"}},
			}, nil
		},
	}
	spend := &stubSpendStatsService{}
	svc := newReportService(t, ReportServiceDeps{Insights: insights, SpendStats: spend})

	nodes, err := svc.AccountReports(context.Background(), "acct1", "act_1", "2022-04-26", "ads")
	if err != nil {
		t.Fatalf("account reports: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].AssetID != "a1" || nodes[0].Stats.FBSpend != 5 {
		t.Fatalf("unexpected first node: %+v", nodes[0])
	}
	if len(spend.fetchCalls) != 1 || spend.fetchCalls[0].Asset.AssetID != "a2" {
		t.Fatalf("expected backfill fetch for a2, got %+v", spend.fetchCalls)
	}
}

func TestCustomerLedgerNormalizesPerEmail(t *testing.T) {
	repo := &stubReportRepository{
		byDateFn: func(ctx context.Context, adAccountID, date string) ([]domain.ReportDoc, error) {
			return []domain.ReportDoc{
				{Type: domain.ReportTypeCustomers, Customers: []OrderRecord{
					{Email: "Jane@Example.com", AdID: "1", ReportDate: date, Cart: []domain.CartItem{{Name: "Widget", Amount: 10}}, Stats: domain.RevenueStats{RoasRevenue: 10, RoasSales: 1}},
					{Email: "jane@example.com", AdID: "1", ReportDate: date, Cart: []domain.CartItem{{Name: "Widget", Amount: 10}}, Stats: domain.RevenueStats{RoasRevenue: 10, RoasSales: 1}},
				}},
			}, nil
		},
	}
	svc := newReportService(t, ReportServiceDeps{Reports: repo})

	ledger, err := svc.CustomerLedger(context.Background(), "act_1", []string{"2022-04-26"})
	if err != nil {
		t.Fatalf("customer ledger: %v", err)
	}
	entries, ok := ledger["jane@example.com"]
	if !ok {
		t.Fatalf("expected lowercased email key, got %v", ledger)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry per ad, got %d", len(entries))
	}
	if entries[0].Email != "jane@example.com" {
		t.Fatalf("expected normalized email, got %q", entries[0].Email)
	}
}

func TestPersistRequiresParameters(t *testing.T) {
	svc := newReportService(t, ReportServiceDeps{})
	_, err := svc.Persist(context.Background(), PersistReportCommand{AdAccountID: "act_1"})
	if !errors.Is(err, ErrReportInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
