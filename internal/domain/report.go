package domain

import (
	"sort"
	"strings"
	"time"
)

const (
	// ReportChunkSize is the document ceiling for chunked report types.
	ReportChunkSize = 500
	// DefaultAttributionWindowDays is the trailing window applied when the
	// caller does not override it.
	DefaultAttributionWindowDays = 7

	ReportTypeCampaigns = "campaigns"
	ReportTypeAdsets    = "adsets"
	ReportTypeAds       = "ads"
	ReportTypeCustomers = "customers"
	ReportTypeDetails   = "details"
)

// ReportID is the run identifier shared by every document of one report:
// the ad account id concatenated with the dash-less date.
func ReportID(adAccountID, date string) string {
	return adAccountID + strings.ReplaceAll(date, "-", "")
}

// ReportDocID builds the deterministic document id for a chunked report type.
func ReportDocID(adAccountID, reportType string, chunk int, date string) string {
	compact := strings.ReplaceAll(date, "-", "")
	return adAccountID + reportType + itoa(chunk) + compact
}

// SingletonDocID builds the document id for the singleton report types
// (customers, details).
func SingletonDocID(adAccountID, reportType, date string) string {
	return adAccountID + reportType + strings.ReplaceAll(date, "-", "")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// AttributionCutoff returns the unix second before which orders fall outside
// the window: the start of the report date minus the window, in UTC.
func AttributionCutoff(windowDays int, date string) (int64, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return 0, err
	}
	return day.AddDate(0, 0, -windowDays).Unix(), nil
}

// InsideAttributionWindow reports whether the order's timestamp falls after
// the cutoff derived from its own report date.
func InsideAttributionWindow(windowDays int, order OrderRecord) bool {
	cutoff, err := AttributionCutoff(windowDays, order.ReportDate)
	if err != nil {
		return false
	}
	return order.Timestamp > cutoff
}

// Chunk splits values into runs of at most size elements, preserving order.
func Chunk[T any](values []T, size int) [][]T {
	if size <= 0 || len(values) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// NormalizeCustomerLedger collapses a customer's attributed orders into one
// entry per ad: carts are merged across distinct report dates, the revenue
// stats are summed over unique dates, and the email is lowercased.
func NormalizeCustomerLedger(orders []OrderRecord) []OrderRecord {
	if len(orders) == 0 {
		return nil
	}

	email := strings.ToLower(orders[0].Email)

	var cart []CartItem
	var revenue, sales float64
	seenDates := make(map[string]struct{})
	for _, order := range orders {
		if _, ok := seenDates[order.ReportDate]; ok {
			continue
		}
		seenDates[order.ReportDate] = struct{}{}
		cart = append(cart, order.Cart...)
		revenue += order.Stats.RoasRevenue
		sales += order.Stats.RoasSales
	}
	stats := RevenueStats{RoasRevenue: Fixed3(revenue), RoasSales: sales}

	seenAds := make(map[string]struct{}, len(orders))
	out := make([]OrderRecord, 0, len(orders))
	for _, order := range orders {
		if _, ok := seenAds[order.AdID]; ok {
			continue
		}
		seenAds[order.AdID] = struct{}{}
		order.Email = email
		order.Cart = cart
		order.Stats = stats
		out = append(out, order)
	}
	return out
}

// ProductOrder is one cart line item flattened with its order context, used
// by the per-product grouping.
type ProductOrder struct {
	ProductName string  `json:"product_name"`
	Amount      float64 `json:"amount"`
	Email       string  `json:"email"`
	Timestamp   int64   `json:"timestamp"`
	ReportDate  string  `json:"report_date"`
	CampaignID  string  `json:"campaign_id,omitempty"`
	AdsetID     string  `json:"adset_id,omitempty"`
	AdID        string  `json:"ad_id,omitempty"`
}

// GroupCartsByProduct flattens the carts of orders matching the given asset
// ids at the requested level ("campaign", "adset", "ad") and groups the line
// items by product name.
func GroupCartsByProduct(level string, assetIDs []string, orders []OrderRecord) map[string][]ProductOrder {
	wanted := make(map[string]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		wanted[id] = struct{}{}
	}

	idOf := func(order OrderRecord) string {
		switch level {
		case "campaign":
			return order.CampaignID
		case "adset":
			return order.AdsetID
		default:
			return order.AdID
		}
	}

	grouped := make(map[string][]ProductOrder)
	for _, order := range orders {
		if _, ok := wanted[idOf(order)]; !ok {
			continue
		}
		for _, item := range order.Cart {
			grouped[item.Name] = append(grouped[item.Name], ProductOrder{
				ProductName: item.Name,
				Amount:      item.Amount,
				Email:       order.Email,
				Timestamp:   order.Timestamp,
				ReportDate:  order.ReportDate,
				CampaignID:  order.CampaignID,
				AdsetID:     order.AdsetID,
				AdID:        order.AdID,
			})
		}
	}
	return grouped
}

// SortOrdersByTimestamp orders ascending by timestamp, stable across equal
// timestamps.
func SortOrdersByTimestamp(orders []OrderRecord) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Timestamp < orders[j].Timestamp
	})
}
