package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/roasworks/attribution/internal/domain"
	pfirestore "github.com/roasworks/attribution/internal/platform/firestore"
)

const reportCollection = "reports"

// ReportRepository persists finished report documents. Writes are full
// overwrites; reruns for the same date replace the previous documents
// because the doc ids are deterministic.
type ReportRepository struct {
	base *pfirestore.BaseRepository[domain.ReportDoc]
}

// NewReportRepository constructs a Firestore-backed report repository.
func NewReportRepository(provider *pfirestore.Provider) (*ReportRepository, error) {
	if provider == nil {
		return nil, errors.New("report repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.ReportDoc](provider, reportCollection, nil, nil)
	return &ReportRepository{base: base}, nil
}

// SetDoc overwrites the report document under its doc id.
func (r *ReportRepository) SetDoc(ctx context.Context, doc domain.ReportDoc) error {
	if r == nil || r.base == nil {
		return errors.New("report repository not initialised")
	}
	if strings.TrimSpace(doc.DocID) == "" {
		return errors.New("report doc id is required")
	}
	_, err := r.base.Set(ctx, doc.DocID, doc)
	return err
}

// Get fetches one report document by doc id.
func (r *ReportRepository) Get(ctx context.Context, docID string) (domain.ReportDoc, error) {
	if r == nil || r.base == nil {
		return domain.ReportDoc{}, errors.New("report repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(docID))
	if err != nil {
		return domain.ReportDoc{}, err
	}
	return doc.Data, nil
}

// ByDate lists the report documents written for an ad account and date.
func (r *ReportRepository) ByDate(ctx context.Context, adAccountID, date string) ([]domain.ReportDoc, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("report repository not initialised")
	}
	if strings.TrimSpace(adAccountID) == "" || strings.TrimSpace(date) == "" {
		return nil, errors.New("report query requires ad account and date")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("fb_ad_account_id", "==", adAccountID).
			Where("date", "==", date)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.ReportDoc, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data)
	}
	return out, nil
}
