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

const insightCollection = "insight"

// InsightRepository reads and writes per-asset spend snapshots. Snapshots
// live in "insight" subcollections under each account, so reads for a report
// run use a collection-group query filtered by ad account.
type InsightRepository struct {
	provider *pfirestore.Provider
	group    *pfirestore.BaseRepository[domain.InsightDoc]
}

// NewInsightRepository constructs a Firestore-backed insight repository.
func NewInsightRepository(provider *pfirestore.Provider) (*InsightRepository, error) {
	if provider == nil {
		return nil, errors.New("insight repository requires firestore provider")
	}
	group := pfirestore.NewBaseRepository[domain.InsightDoc](provider, insightCollection, nil, nil)
	return &InsightRepository{provider: provider, group: group}, nil
}

// ByDateType lists every insight doc for a date, a hierarchy level, and an ad account.
func (r *InsightRepository) ByDateType(ctx context.Context, date, assetType, adAccountID string) ([]domain.InsightDoc, error) {
	if r == nil || r.group == nil {
		return nil, errors.New("insight repository not initialised")
	}
	if strings.TrimSpace(date) == "" || strings.TrimSpace(assetType) == "" || strings.TrimSpace(adAccountID) == "" {
		return nil, errors.New("insight query requires date, type, and ad account")
	}

	docs, err := r.group.QueryGroup(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("date", "==", date).
			Where("type", "==", assetType).
			Where("fb_ad_account_id", "==", adAccountID)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.InsightDoc, 0, len(docs))
	for _, doc := range docs {
		insight := doc.Data
		// Legacy docs key the asset only inside details.
		if insight.AssetID == "" {
			insight.AssetID = insight.Details.AssetID
		}
		out = append(out, insight)
	}
	return out, nil
}

// Put upserts a single insight snapshot under the account's cache.
func (r *InsightRepository) Put(ctx context.Context, accountUserID string, doc domain.InsightDoc) error {
	if r == nil || r.provider == nil {
		return errors.New("insight repository not initialised")
	}
	account := strings.TrimSpace(accountUserID)
	if account == "" {
		return errors.New("account user id is required")
	}
	if strings.TrimSpace(doc.AssetID) == "" || strings.TrimSpace(doc.Date) == "" || strings.TrimSpace(doc.Type) == "" {
		return errors.New("insight doc requires asset id, date, and type")
	}

	path := fmt.Sprintf("%s/%s/%s", userCollection, account, insightCollection)
	base := pfirestore.NewBaseRepository[domain.InsightDoc](r.provider, path, nil, nil)

	docID := doc.AssetID + doc.Type + strings.ReplaceAll(doc.Date, "-", "")
	_, err := base.Set(ctx, docID, doc)
	return err
}
