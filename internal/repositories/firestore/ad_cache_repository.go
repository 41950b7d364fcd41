package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/roasworks/attribution/internal/domain"
	pfirestore "github.com/roasworks/attribution/internal/platform/firestore"
)

const adCacheCollection = "ads"

// AdCacheRepository persists resolved ad hierarchy snapshots under each
// account, keyed by ad id. Snapshots are written once per resolution and
// rewritten when a partial record gains its hierarchy details.
type AdCacheRepository struct {
	provider *pfirestore.Provider
}

// NewAdCacheRepository constructs a Firestore-backed ad cache.
func NewAdCacheRepository(provider *pfirestore.Provider) (*AdCacheRepository, error) {
	if provider == nil {
		return nil, errors.New("ad cache repository requires firestore provider")
	}
	return &AdCacheRepository{provider: provider}, nil
}

// Get returns the cached asset for the ad. The boolean reports presence; a
// missing document is not an error.
func (r *AdCacheRepository) Get(ctx context.Context, accountUserID, adID string) (domain.AdAsset, bool, error) {
	base, err := r.accountBase(accountUserID)
	if err != nil {
		return domain.AdAsset{}, false, err
	}
	if strings.TrimSpace(adID) == "" {
		return domain.AdAsset{}, false, errors.New("ad id is required")
	}

	doc, err := base.Get(ctx, strings.TrimSpace(adID))
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.AdAsset{}, false, nil
		}
		return domain.AdAsset{}, false, err
	}
	return doc.Data.AdAsset, true, nil
}

// Put upserts the asset snapshot under the account's cache.
func (r *AdCacheRepository) Put(ctx context.Context, accountUserID, date string, asset domain.AdAsset) error {
	base, err := r.accountBase(accountUserID)
	if err != nil {
		return err
	}
	adID := strings.TrimSpace(asset.AdID)
	if adID == "" {
		adID = strings.TrimSpace(asset.AssetID)
	}
	if adID == "" {
		return errors.New("ad cache: asset is missing an ad id")
	}

	_, err = base.Set(ctx, adID, adCacheDocument{
		AdAsset: asset,
		Date:    strings.TrimSpace(date),
	})
	return err
}

func (r *AdCacheRepository) accountBase(accountUserID string) (*pfirestore.BaseRepository[adCacheDocument], error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("ad cache repository not initialised")
	}
	account := strings.TrimSpace(accountUserID)
	if account == "" {
		return nil, errors.New("account user id is required")
	}
	path := fmt.Sprintf("%s/%s/%s", userCollection, account, adCacheCollection)
	return pfirestore.NewBaseRepository[adCacheDocument](r.provider, path, nil, nil), nil
}

type adCacheDocument struct {
	domain.AdAsset
	Date string `firestore:"date"`
}
