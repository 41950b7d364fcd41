package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/services"
)

type stubReportService struct {
	generateFunc func(ctx context.Context, cmd services.AggregateCommand) (services.ReportRunSummary, error)
	mergedFunc   func(ctx context.Context, adAccountID string, dates []string) (domain.AttributionReport, error)
	accountFunc  func(ctx context.Context, accountUserID, adAccountID, date, assetType string) ([]domain.ReportNode, error)
	ledgerFunc   func(ctx context.Context, adAccountID string, dates []string) (map[string][]domain.OrderRecord, error)
	productsFunc func(ctx context.Context, adAccountID, level string, assetIDs, dates []string) (map[string][]domain.ProductOrder, error)
}

func (s *stubReportService) Generate(ctx context.Context, cmd services.AggregateCommand) (services.ReportRunSummary, error) {
	if s.generateFunc != nil {
		return s.generateFunc(ctx, cmd)
	}
	return services.ReportRunSummary{}, nil
}

func (s *stubReportService) Persist(ctx context.Context, cmd services.PersistReportCommand) (services.ReportRunSummary, error) {
	return services.ReportRunSummary{}, nil
}

func (s *stubReportService) MergedReport(ctx context.Context, adAccountID string, dates []string) (domain.AttributionReport, error) {
	if s.mergedFunc != nil {
		return s.mergedFunc(ctx, adAccountID, dates)
	}
	return domain.AttributionReport{}, nil
}

func (s *stubReportService) AccountReports(ctx context.Context, accountUserID, adAccountID, date, assetType string) ([]domain.ReportNode, error) {
	if s.accountFunc != nil {
		return s.accountFunc(ctx, accountUserID, adAccountID, date, assetType)
	}
	return nil, nil
}

func (s *stubReportService) CustomerLedger(ctx context.Context, adAccountID string, dates []string) (map[string][]domain.OrderRecord, error) {
	if s.ledgerFunc != nil {
		return s.ledgerFunc(ctx, adAccountID, dates)
	}
	return nil, nil
}

func (s *stubReportService) ProductGroupings(ctx context.Context, adAccountID, level string, assetIDs, dates []string) (map[string][]domain.ProductOrder, error) {
	if s.productsFunc != nil {
		return s.productsFunc(ctx, adAccountID, level, assetIDs, dates)
	}
	return nil, nil
}

func newReportRequest(t *testing.T, method, target string, body []byte, params map[string]string) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestGenerateReportSuccess(t *testing.T) {
	var received services.AggregateCommand
	svc := &stubReportService{
		generateFunc: func(ctx context.Context, cmd services.AggregateCommand) (services.ReportRunSummary, error) {
			received = cmd
			return services.ReportRunSummary{
				RunID:         "run-1",
				ReportID:      "act_120220426",
				Date:          cmd.Date,
				CampaignCount: 2,
				DocsWritten:   7,
				MessageID:     "msg-1",
			}, nil
		},
	}

	handler := NewReportHandlers(svc)
	body := []byte(`{"user_id":"acct-1","ad_account_id":"act_1","window_days":14,"cart_provider":"clickfunnels_webhook"}`)
	req := newReportRequest(t, http.MethodPost, "/v1/reports/2022-04-26", body, map[string]string{"date": "2022-04-26"})
	resp := httptest.NewRecorder()

	handler.generate(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if received.AccountUserID != "acct-1" || received.AdAccountID != "act_1" {
		t.Fatalf("unexpected command scope: %+v", received)
	}
	if received.Date != "2022-04-26" {
		t.Fatalf("expected date from path, got %q", received.Date)
	}
	if received.WindowDays != 14 || received.CartProvider != "clickfunnels_webhook" {
		t.Fatalf("unexpected command options: %+v", received)
	}

	var payload generateReportResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.RunID != "run-1" || payload.ReportID != "act_120220426" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.DocsWritten != 7 || payload.MessageID != "msg-1" {
		t.Fatalf("unexpected payload counts: %+v", payload)
	}
}

func TestGenerateReportValidation(t *testing.T) {
	handler := NewReportHandlers(&stubReportService{})

	cases := []struct {
		name   string
		date   string
		body   string
		status int
	}{
		{name: "bad date", date: "20220426", body: `{"user_id":"u","ad_account_id":"a"}`, status: http.StatusBadRequest},
		{name: "missing user", date: "2022-04-26", body: `{"ad_account_id":"a"}`, status: http.StatusBadRequest},
		{name: "missing account", date: "2022-04-26", body: `{"user_id":"u"}`, status: http.StatusBadRequest},
		{name: "negative window", date: "2022-04-26", body: `{"user_id":"u","ad_account_id":"a","window_days":-1}`, status: http.StatusBadRequest},
		{name: "empty body", date: "2022-04-26", body: "", status: http.StatusBadRequest},
		{name: "invalid json", date: "2022-04-26", body: "{", status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := newReportRequest(t, http.MethodPost, "/v1/reports/"+tc.date, []byte(tc.body), map[string]string{"date": tc.date})
			resp := httptest.NewRecorder()
			handler.generate(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestGenerateReportServiceErrorMapping(t *testing.T) {
	svc := &stubReportService{
		generateFunc: func(ctx context.Context, cmd services.AggregateCommand) (services.ReportRunSummary, error) {
			return services.ReportRunSummary{}, services.ErrUnknownCartProvider
		},
	}

	handler := NewReportHandlers(svc)
	body := []byte(`{"user_id":"u","ad_account_id":"a","cart_provider":"woocommerce"}`)
	req := newReportRequest(t, http.MethodPost, "/v1/reports/2022-04-26", body, map[string]string{"date": "2022-04-26"})
	resp := httptest.NewRecorder()

	handler.generate(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestMergedReportParsesDates(t *testing.T) {
	var gotAccount string
	var gotDates []string
	svc := &stubReportService{
		mergedFunc: func(ctx context.Context, adAccountID string, dates []string) (domain.AttributionReport, error) {
			gotAccount = adAccountID
			gotDates = dates
			return domain.AttributionReport{
				Campaigns: map[string]domain.ReportNode{"c1": {Type: "campaigns", AssetID: "c1"}},
				Adsets:    map[string]domain.ReportNode{},
				Ads:       map[string]domain.ReportNode{},
			}, nil
		},
	}

	handler := NewReportHandlers(svc)
	req := newReportRequest(t, http.MethodGet, "/v1/reports/act_1/merged?dates=2022-04-25,2022-04-26", nil, map[string]string{"adAccountID": "act_1"})
	resp := httptest.NewRecorder()

	handler.merged(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotAccount != "act_1" {
		t.Fatalf("expected ad account act_1, got %q", gotAccount)
	}
	if len(gotDates) != 2 || gotDates[0] != "2022-04-25" || gotDates[1] != "2022-04-26" {
		t.Fatalf("unexpected dates: %v", gotDates)
	}

	var payload mergedReportResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if _, ok := payload.Campaigns["c1"]; !ok {
		t.Fatalf("expected campaign node in payload, got %+v", payload.Campaigns)
	}
}

func TestMergedReportRejectsBadDates(t *testing.T) {
	handler := NewReportHandlers(&stubReportService{})

	req := newReportRequest(t, http.MethodGet, "/v1/reports/act_1/merged?dates=26-04-2022", nil, map[string]string{"adAccountID": "act_1"})
	resp := httptest.NewRecorder()
	handler.merged(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed date, got %d", resp.Code)
	}

	req = newReportRequest(t, http.MethodGet, "/v1/reports/act_1/merged", nil, map[string]string{"adAccountID": "act_1"})
	resp = httptest.NewRecorder()
	handler.merged(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing dates, got %d", resp.Code)
	}
}

func TestAccountReportsRequiresDate(t *testing.T) {
	handler := NewReportHandlers(&stubReportService{})
	req := newReportRequest(t, http.MethodGet, "/v1/reports/act_1/account/campaigns", nil, map[string]string{
		"adAccountID": "act_1",
		"assetType":   "campaigns",
	})
	resp := httptest.NewRecorder()

	handler.accountReports(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestAccountReportsSuccess(t *testing.T) {
	svc := &stubReportService{
		accountFunc: func(ctx context.Context, accountUserID, adAccountID, date, assetType string) ([]domain.ReportNode, error) {
			if accountUserID != "acct-1" || adAccountID != "act_1" || date != "2022-04-26" || assetType != "adsets" {
				t.Fatalf("unexpected scope: %s %s %s %s", accountUserID, adAccountID, date, assetType)
			}
			return []domain.ReportNode{{Type: "adsets", AssetID: "as1"}}, nil
		},
	}

	handler := NewReportHandlers(svc)
	req := newReportRequest(t, http.MethodGet, "/v1/reports/act_1/account/adsets?date=2022-04-26&user_id=acct-1", nil, map[string]string{
		"adAccountID": "act_1",
		"assetType":   "adsets",
	})
	resp := httptest.NewRecorder()

	handler.accountReports(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload accountReportsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if len(payload.Nodes) != 1 || payload.Nodes[0].AssetID != "as1" {
		t.Fatalf("unexpected nodes: %+v", payload.Nodes)
	}
}

func TestCustomerLedgerSuccess(t *testing.T) {
	svc := &stubReportService{
		ledgerFunc: func(ctx context.Context, adAccountID string, dates []string) (map[string][]domain.OrderRecord, error) {
			return map[string][]domain.OrderRecord{
				"jane@example.com": {{Email: "jane@example.com", AdID: "7"}},
			}, nil
		},
	}

	handler := NewReportHandlers(svc)
	req := newReportRequest(t, http.MethodGet, "/v1/reports/act_1/customers?dates=2022-04-26", nil, map[string]string{"adAccountID": "act_1"})
	resp := httptest.NewRecorder()

	handler.customerLedger(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload customerLedgerResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	orders, ok := payload.Customers["jane@example.com"]
	if !ok || len(orders) != 1 || orders[0].AdID != "7" {
		t.Fatalf("unexpected ledger payload: %+v", payload.Customers)
	}
}

func TestProductGroupingsRequiresAssetIDs(t *testing.T) {
	handler := NewReportHandlers(&stubReportService{})
	req := newReportRequest(t, http.MethodGet, "/v1/reports/act_1/products/campaign?dates=2022-04-26", nil, map[string]string{
		"adAccountID": "act_1",
		"level":       "campaign",
	})
	resp := httptest.NewRecorder()

	handler.productGroupings(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestProductGroupingsSuccess(t *testing.T) {
	var gotLevel string
	var gotAssetIDs []string
	svc := &stubReportService{
		productsFunc: func(ctx context.Context, adAccountID, level string, assetIDs, dates []string) (map[string][]domain.ProductOrder, error) {
			gotLevel = level
			gotAssetIDs = assetIDs
			return map[string][]domain.ProductOrder{
				"Starter Kit": {{ProductName: "Starter Kit", Amount: 49.99, Email: "jane@example.com"}},
			}, nil
		},
	}

	handler := NewReportHandlers(svc)
	req := newReportRequest(t, http.MethodGet, "/v1/reports/act_1/products/campaign?dates=2022-04-26&asset_ids=c1,c2", nil, map[string]string{
		"adAccountID": "act_1",
		"level":       "campaign",
	})
	resp := httptest.NewRecorder()

	handler.productGroupings(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotLevel != "campaign" {
		t.Fatalf("expected level campaign, got %q", gotLevel)
	}
	if len(gotAssetIDs) != 2 || gotAssetIDs[0] != "c1" || gotAssetIDs[1] != "c2" {
		t.Fatalf("unexpected asset ids: %v", gotAssetIDs)
	}

	var payload productGroupingsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if len(payload.Products["Starter Kit"]) != 1 {
		t.Fatalf("unexpected products payload: %+v", payload.Products)
	}
}
