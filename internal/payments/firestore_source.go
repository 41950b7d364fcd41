package payments

import (
	"context"
	"errors"
	"strings"

	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/repositories"
)

// FirestoreSource reads the pre-aggregated ledger docs a processor's webhook
// pipeline writes into its payment_processor_<type>s collection.
type FirestoreSource struct {
	processor string
	repo      repositories.PaymentStatsRepository
}

// NewFirestoreSource constructs a stats source for one processor type backed
// by the shared payment stats repository.
func NewFirestoreSource(processor string, repo repositories.PaymentStatsRepository) (*FirestoreSource, error) {
	proc := strings.TrimSpace(strings.ToLower(processor))
	if proc == "" {
		return nil, errors.New("payments: processor type is required")
	}
	if repo == nil {
		return nil, errors.New("payments: payment stats repository is required")
	}
	return &FirestoreSource{processor: proc, repo: repo}, nil
}

// DailyStats returns the stored ledger doc for the date, zero-valued when the
// processor wrote nothing for that day.
func (s *FirestoreSource) DailyStats(ctx context.Context, date, accountUserID string) (domain.PaymentStatsDoc, error) {
	if s == nil || s.repo == nil {
		return domain.PaymentStatsDoc{}, errors.New("payments: firestore source not initialised")
	}
	return s.repo.StatsDoc(ctx, s.processor, date, accountUserID)
}
