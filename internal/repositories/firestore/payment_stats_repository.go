package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/roasworks/attribution/internal/domain"
	pfirestore "github.com/roasworks/attribution/internal/platform/firestore"
)

// PaymentStatsRepository reads processor-side customer aggregates. Each
// processor writes into its own collection named payment_processor_<type>s.
type PaymentStatsRepository struct {
	provider *pfirestore.Provider
}

// NewPaymentStatsRepository constructs a Firestore-backed payment stats repository.
func NewPaymentStatsRepository(provider *pfirestore.Provider) (*PaymentStatsRepository, error) {
	if provider == nil {
		return nil, errors.New("payment stats repository requires firestore provider")
	}
	return &PaymentStatsRepository{provider: provider}, nil
}

// StatsDoc returns the aggregate doc for the date, or a zero value when none
// exists. A missing doc is not an error.
func (r *PaymentStatsRepository) StatsDoc(ctx context.Context, processor, date, accountUserID string) (domain.PaymentStatsDoc, error) {
	if r == nil || r.provider == nil {
		return domain.PaymentStatsDoc{}, errors.New("payment stats repository not initialised")
	}
	proc := strings.TrimSpace(processor)
	if proc == "" {
		return domain.PaymentStatsDoc{}, errors.New("processor type is required")
	}
	if strings.TrimSpace(date) == "" || strings.TrimSpace(accountUserID) == "" {
		return domain.PaymentStatsDoc{}, errors.New("payment stats query requires date and account")
	}

	collection := fmt.Sprintf("payment_processor_%ss", proc)
	base := pfirestore.NewBaseRepository[domain.PaymentStatsDoc](r.provider, collection, nil, nil)

	docs, err := base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("date", "==", date).
			Where("user_id", "==", accountUserID)
	})
	if err != nil {
		return domain.PaymentStatsDoc{}, err
	}
	if len(docs) == 0 {
		return domain.PaymentStatsDoc{}, nil
	}
	return docs[0].Data, nil
}
