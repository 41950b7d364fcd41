package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/roasworks/attribution/internal/domain"
	pfirestore "github.com/roasworks/attribution/internal/platform/firestore"
)

const cartCollection = "clickfunnels"

// CartRepository reads shopping-cart webhook documents. Every query is scoped
// to the owning account so one tenant never sees another's orders.
type CartRepository struct {
	base *pfirestore.BaseRepository[domain.CartDoc]
}

// NewCartRepository constructs a Firestore-backed cart document repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[domain.CartDoc](provider, cartCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// ByEmails lists the cart documents whose email matches any of the values.
func (r *CartRepository) ByEmails(ctx context.Context, accountUserID string, emails []string) ([]domain.CartDoc, error) {
	return r.byField(ctx, accountUserID, "email", emails)
}

// ByIPs lists the cart documents whose ip matches any of the values.
func (r *CartRepository) ByIPs(ctx context.Context, accountUserID string, ips []string) ([]domain.CartDoc, error) {
	return r.byField(ctx, accountUserID, "ip", ips)
}

func (r *CartRepository) byField(ctx context.Context, accountUserID, field string, values []string) ([]domain.CartDoc, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("cart repository not initialised")
	}
	account := strings.TrimSpace(accountUserID)
	if account == "" {
		return nil, errors.New("account user id is required")
	}
	if len(values) == 0 {
		return nil, nil
	}

	docs, err := r.base.QueryChunked(ctx, values, func(query firestore.Query, chunk []string) firestore.Query {
		return query.
			Where(field, "in", chunk).
			Where("user_id", "==", account)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.CartDoc, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data)
	}
	return out, nil
}
