package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	domain "github.com/roasworks/attribution/internal/domain"
)

// StripeLogger defines the logging contract for Stripe source operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

// chargeLister abstracts the charge listing call so tests can stub the API.
type chargeLister func(ctx context.Context, from, to int64) ([]*stripe.Charge, error)

// StripeSourceConfig configures the StripeSource.
type StripeSourceConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Charges   chargeLister
}

// StripeSource builds the daily customer ledger directly from Stripe charges
// instead of a pre-aggregated webhook collection.
type StripeSource struct {
	charges chargeLister
	logger  StripeLogger
}

// NewStripeSource constructs a Stripe-backed stats source.
func NewStripeSource(cfg StripeSourceConfig) (*StripeSource, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Charges == nil {
		return nil, errors.New("stripe: api key is required")
	}

	charges := cfg.Charges
	if charges == nil {
		sc := client.New(apiKey, cfg.Backends)
		account := strings.TrimSpace(cfg.AccountID)
		charges = func(ctx context.Context, from, to int64) ([]*stripe.Charge, error) {
			params := &stripe.ChargeListParams{
				CreatedRange: &stripe.RangeQueryParams{
					GreaterThanOrEqual: from,
					LesserThan:         to,
				},
			}
			params.Context = ctx
			if account != "" {
				params.SetStripeAccount(account)
			}
			params.Limit = stripe.Int64(100)

			var out []*stripe.Charge
			iter := sc.Charges.List(params)
			for iter.Next() {
				out = append(out, iter.Charge())
			}
			if err := iter.Err(); err != nil {
				return nil, err
			}
			return out, nil
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeSource{
		charges: charges,
		logger:  logger,
	}, nil
}

// DailyStats lists the day's captured charges and folds them into a customer
// ledger keyed by lowercased email. Unpaid and fully refunded charges are
// skipped, as are charges without a customer email.
func (s *StripeSource) DailyStats(ctx context.Context, date, accountUserID string) (domain.PaymentStatsDoc, error) {
	if s == nil || s.charges == nil {
		return domain.PaymentStatsDoc{}, errors.New("stripe: source not initialised")
	}

	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), time.UTC)
	if err != nil {
		return domain.PaymentStatsDoc{}, fmt.Errorf("stripe: invalid date %q: %w", date, err)
	}

	charges, err := s.charges(ctx, day.Unix(), day.Add(24*time.Hour).Unix())
	if err != nil {
		return domain.PaymentStatsDoc{}, fmt.Errorf("stripe: list charges: %w", err)
	}

	customers := make(map[string]domain.OrderRecord)
	skipped := 0
	for _, ch := range charges {
		if ch == nil || !ch.Paid || ch.Refunded {
			continue
		}
		email := chargeEmail(ch)
		if email == "" {
			skipped++
			continue
		}

		item := domain.CartItem{
			Name:   chargeLabel(ch),
			Amount: float64(ch.Amount) / 100,
		}

		record, ok := customers[email]
		if !ok {
			record = domain.OrderRecord{
				Email:      email,
				Timestamp:  ch.Created,
				ReportDate: day.Format("2006-01-02"),
			}
		}
		if ch.Created < record.Timestamp {
			record.Timestamp = ch.Created
		}
		record.Cart = append(record.Cart, item)
		customers[email] = record
	}

	s.logger(ctx, "payments.stripe.daily_stats", map[string]any{
		"date":      day.Format("2006-01-02"),
		"charges":   len(charges),
		"customers": len(customers),
		"skipped":   skipped,
	})

	doc := domain.PaymentStatsDoc{
		Date:   day.Format("2006-01-02"),
		UserID: strings.TrimSpace(accountUserID),
	}
	if len(customers) > 0 {
		doc.Customers = customers
	}
	return doc, nil
}

func chargeEmail(ch *stripe.Charge) string {
	if ch.BillingDetails != nil && ch.BillingDetails.Email != "" {
		return strings.ToLower(strings.TrimSpace(ch.BillingDetails.Email))
	}
	return strings.ToLower(strings.TrimSpace(ch.ReceiptEmail))
}

func chargeLabel(ch *stripe.Charge) string {
	if desc := strings.TrimSpace(ch.Description); desc != "" {
		return desc
	}
	return "stripe charge"
}
