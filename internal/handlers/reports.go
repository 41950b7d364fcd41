package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/payments"
	"github.com/roasworks/attribution/internal/platform/httpx"
	"github.com/roasworks/attribution/internal/services"
)

const (
	maxReportRequestBody = 16 * 1024
	reportDateLayout     = "2006-01-02"
	maxReportDates       = 31
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// ReportHandlers exposes the attribution run trigger and stored report reads.
type ReportHandlers struct {
	reports services.ReportService
}

// NewReportHandlers constructs a report handler set.
func NewReportHandlers(reports services.ReportService) *ReportHandlers {
	return &ReportHandlers{reports: reports}
}

// Routes registers the report endpoints beneath the API prefix.
func (h *ReportHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Post("/reports/{date}", h.generate)
	r.Get("/reports/{adAccountID}/merged", h.merged)
	r.Get("/reports/{adAccountID}/account/{assetType}", h.accountReports)
	r.Get("/reports/{adAccountID}/customers", h.customerLedger)
	r.Get("/reports/{adAccountID}/products/{level}", h.productGroupings)
}

type generateReportRequest struct {
	UserID           string `json:"user_id"`
	AdAccountID      string `json:"ad_account_id"`
	WindowDays       int    `json:"window_days,omitempty"`
	CartProvider     string `json:"cart_provider,omitempty"`
	PaymentProcessor string `json:"payment_processor,omitempty"`
}

type generateReportResponse struct {
	RunID         string `json:"run_id"`
	ReportID      string `json:"report_id"`
	Date          string `json:"date"`
	CampaignCount int    `json:"campaign_count"`
	AdsetCount    int    `json:"adset_count"`
	AdCount       int    `json:"ad_count"`
	CustomerCount int    `json:"customer_count"`
	DocsWritten   int    `json:"docs_written"`
	DocsFailed    int    `json:"docs_failed"`
	MessageID     string `json:"message_id,omitempty"`
}

func (h *ReportHandlers) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "report service not available", http.StatusServiceUnavailable))
		return
	}

	date := strings.TrimSpace(chi.URLParam(r, "date"))
	if _, err := time.Parse(reportDateLayout, date); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be formatted as YYYY-MM-DD", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxReportRequestBody)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req generateReportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id is required", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.AdAccountID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "ad_account_id is required", http.StatusBadRequest))
		return
	}
	if req.WindowDays < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "window_days must not be negative", http.StatusBadRequest))
		return
	}

	summary, err := h.reports.Generate(ctx, services.AggregateCommand{
		AccountUserID:    strings.TrimSpace(req.UserID),
		AdAccountID:      strings.TrimSpace(req.AdAccountID),
		Date:             date,
		WindowDays:       req.WindowDays,
		CartProvider:     strings.TrimSpace(req.CartProvider),
		PaymentProcessor: strings.TrimSpace(req.PaymentProcessor),
	})
	if err != nil {
		writeReportError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusAccepted, generateReportResponse{
		RunID:         summary.RunID,
		ReportID:      summary.ReportID,
		Date:          summary.Date,
		CampaignCount: summary.CampaignCount,
		AdsetCount:    summary.AdsetCount,
		AdCount:       summary.AdCount,
		CustomerCount: summary.CustomerCount,
		DocsWritten:   summary.DocsWritten,
		DocsFailed:    summary.DocsFailed,
		MessageID:     summary.MessageID,
	})
}

type mergedReportResponse struct {
	AdAccountID string                       `json:"ad_account_id"`
	Dates       []string                     `json:"dates"`
	Campaigns   map[string]domain.ReportNode `json:"campaigns"`
	Adsets      map[string]domain.ReportNode `json:"adsets"`
	Ads         map[string]domain.ReportNode `json:"ads"`
	Customers   []domain.OrderRecord         `json:"customers"`
}

func (h *ReportHandlers) merged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "report service not available", http.StatusServiceUnavailable))
		return
	}

	adAccountID := strings.TrimSpace(chi.URLParam(r, "adAccountID"))
	dates, err := parseDatesQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	report, err := h.reports.MergedReport(ctx, adAccountID, dates)
	if err != nil {
		writeReportError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, mergedReportResponse{
		AdAccountID: adAccountID,
		Dates:       dates,
		Campaigns:   report.Campaigns,
		Adsets:      report.Adsets,
		Ads:         report.Ads,
		Customers:   report.Customers,
	})
}

type accountReportsResponse struct {
	AdAccountID string              `json:"ad_account_id"`
	Date        string              `json:"date"`
	AssetType   string              `json:"asset_type"`
	Nodes       []domain.ReportNode `json:"nodes"`
}

func (h *ReportHandlers) accountReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "report service not available", http.StatusServiceUnavailable))
		return
	}

	adAccountID := strings.TrimSpace(chi.URLParam(r, "adAccountID"))
	assetType := strings.TrimSpace(chi.URLParam(r, "assetType"))
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date query parameter is required", http.StatusBadRequest))
		return
	}
	if _, err := time.Parse(reportDateLayout, date); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be formatted as YYYY-MM-DD", http.StatusBadRequest))
		return
	}

	nodes, err := h.reports.AccountReports(ctx, userID, adAccountID, date, assetType)
	if err != nil {
		writeReportError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, accountReportsResponse{
		AdAccountID: adAccountID,
		Date:        date,
		AssetType:   assetType,
		Nodes:       nodes,
	})
}

type customerLedgerResponse struct {
	AdAccountID string                          `json:"ad_account_id"`
	Dates       []string                        `json:"dates"`
	Customers   map[string][]domain.OrderRecord `json:"customers"`
}

func (h *ReportHandlers) customerLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "report service not available", http.StatusServiceUnavailable))
		return
	}

	adAccountID := strings.TrimSpace(chi.URLParam(r, "adAccountID"))
	dates, err := parseDatesQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	ledger, err := h.reports.CustomerLedger(ctx, adAccountID, dates)
	if err != nil {
		writeReportError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, customerLedgerResponse{
		AdAccountID: adAccountID,
		Dates:       dates,
		Customers:   ledger,
	})
}

type productGroupingsResponse struct {
	AdAccountID string                           `json:"ad_account_id"`
	Level       string                           `json:"level"`
	Dates       []string                         `json:"dates"`
	Products    map[string][]domain.ProductOrder `json:"products"`
}

func (h *ReportHandlers) productGroupings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "report service not available", http.StatusServiceUnavailable))
		return
	}

	adAccountID := strings.TrimSpace(chi.URLParam(r, "adAccountID"))
	level := strings.TrimSpace(chi.URLParam(r, "level"))
	dates, err := parseDatesQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	assetIDs := splitCommaQuery(r.URL.Query().Get("asset_ids"))
	if len(assetIDs) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "asset_ids query parameter is required", http.StatusBadRequest))
		return
	}

	products, err := h.reports.ProductGroupings(ctx, adAccountID, level, assetIDs, dates)
	if err != nil {
		writeReportError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productGroupingsResponse{
		AdAccountID: adAccountID,
		Level:       level,
		Dates:       dates,
		Products:    products,
	})
}

// parseDatesQuery reads the comma-separated dates parameter, falling back to a
// single date parameter, validating each as a calendar date.
func parseDatesQuery(r *http.Request) ([]string, error) {
	raw := r.URL.Query().Get("dates")
	if strings.TrimSpace(raw) == "" {
		raw = r.URL.Query().Get("date")
	}
	dates := splitCommaQuery(raw)
	if len(dates) == 0 {
		return nil, errors.New("dates query parameter is required")
	}
	if len(dates) > maxReportDates {
		return nil, errors.New("too many dates requested")
	}
	for _, date := range dates {
		if _, err := time.Parse(reportDateLayout, date); err != nil {
			return nil, errors.New("dates must be formatted as YYYY-MM-DD")
		}
	}
	return dates, nil
}

func splitCommaQuery(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxReportRequestBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

func writeReportError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrReportInvalidInput),
		errors.Is(err, services.ErrAttributionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnknownCartProvider):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_cart_provider", err.Error(), http.StatusBadRequest))
	case errors.Is(err, payments.ErrUnsupportedProcessor):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_processor", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("report_error", "failed to serve report request", http.StatusInternalServerError))
	}
}
