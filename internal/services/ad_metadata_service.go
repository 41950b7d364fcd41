package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roasworks/attribution/internal/adplatform"
	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/platform/requestctx"
	"github.com/roasworks/attribution/internal/repositories"
)

// ErrAdMetadataInvalidInput indicates the caller supplied invalid resolution parameters.
var ErrAdMetadataInvalidInput = errors.New("ad metadata: invalid input")

// AdMetadataServiceDeps bundles collaborators required to construct the resolver.
type AdMetadataServiceDeps struct {
	Cache    repositories.AdCacheRepository
	Platform AdPlatformClient
}

type adMetadataService struct {
	cache    repositories.AdCacheRepository
	platform AdPlatformClient
}

var _ AdMetadataService = (*adMetadataService)(nil)

// NewAdMetadataService constructs the cache-first ad hierarchy resolver.
func NewAdMetadataService(deps AdMetadataServiceDeps) (AdMetadataService, error) {
	if deps.Cache == nil {
		return nil, errors.New("ad metadata service: cache repository is required")
	}
	if deps.Platform == nil {
		return nil, errors.New("ad metadata service: platform client is required")
	}
	return &adMetadataService{
		cache:    deps.Cache,
		platform: deps.Platform,
	}, nil
}

// Resolve returns the hierarchy snapshot for one ad. Errors are carried on
// the resolution record so one unresolved ad never aborts its batch. Cached
// snapshots are treated as permanent once fully resolved; partial records are
// re-fetched until their hierarchy fills in.
func (s *adMetadataService) Resolve(ctx context.Context, accountUserID, date, adID string) AdResolution {
	account := strings.TrimSpace(accountUserID)
	id := strings.TrimSpace(adID)
	if account == "" || strings.TrimSpace(date) == "" || id == "" {
		return AdResolution{AdID: id, Err: fmt.Errorf("%w: account, date, and ad id are required", ErrAdMetadataInvalidInput)}
	}

	cached, present, err := s.cache.Get(ctx, account, id)
	if err != nil {
		return AdResolution{AdID: id, Err: fmt.Errorf("ad metadata: cache read %s: %w", id, err)}
	}
	if present && cached.Resolved() {
		return AdResolution{AdID: id, Asset: cached}
	}

	asset, err := s.fetchHierarchy(ctx, id)
	if err != nil {
		return AdResolution{AdID: id, Err: err}
	}

	if err := s.cache.Put(ctx, account, date, asset); err != nil {
		// Non-fatal: the caller still gets the resolved asset.
		requestctx.Logger(ctx).Warn("ad metadata cache write failed",
			zap.String("ad_id", id),
			zap.Error(err))
	}

	return AdResolution{AdID: id, Asset: asset}
}

// ResolveAll resolves a batch concurrently, preserving input order.
func (s *adMetadataService) ResolveAll(ctx context.Context, accountUserID, date string, adIDs []string) []AdResolution {
	results := make([]AdResolution, len(adIDs))
	var wg sync.WaitGroup
	for i, adID := range adIDs {
		wg.Add(1)
		go func(i int, adID string) {
			defer wg.Done()
			results[i] = s.Resolve(ctx, accountUserID, date, adID)
		}(i, adID)
	}
	wg.Wait()
	return results
}

// fetchHierarchy pulls the ad and, when it exists, its parent adset and
// campaign. The two parent lookups are independent and run concurrently.
func (s *adMetadataService) fetchHierarchy(ctx context.Context, adID string) (AdAsset, error) {
	ad, err := s.platform.GetAd(ctx, adID)
	if err != nil {
		if errors.Is(err, adplatform.ErrAssetNotFound) {
			// Platform miss: a degenerate asset with only the raw id.
			return AdAsset{AssetID: adID}, nil
		}
		return AdAsset{}, fmt.Errorf("ad metadata: fetch ad %s: %w", adID, err)
	}

	var (
		wg          sync.WaitGroup
		adset       adplatform.NamedAsset
		campaign    adplatform.NamedAsset
		adsetErr    error
		campaignErr error
	)
	if ad.AdsetID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adset, adsetErr = s.platform.GetAdset(ctx, ad.AdsetID)
		}()
	}
	if ad.CampaignID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			campaign, campaignErr = s.platform.GetCampaign(ctx, ad.CampaignID)
		}()
	}
	wg.Wait()

	if adsetErr != nil {
		return AdAsset{}, fmt.Errorf("ad metadata: fetch adset %s: %w", ad.AdsetID, adsetErr)
	}
	if campaignErr != nil {
		return AdAsset{}, fmt.Errorf("ad metadata: fetch campaign %s: %w", ad.CampaignID, campaignErr)
	}

	details := &domain.AssetDetails{
		AssetID:      ad.ID,
		AssetName:    ad.Name,
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		AdsetID:      adset.ID,
		AdsetName:    adset.Name,
		AdID:         ad.ID,
		AdName:       ad.Name,
	}

	return AdAsset{
		AccountID:    ad.AccountID,
		AssetID:      ad.ID,
		AssetName:    ad.Name,
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		AdsetID:      adset.ID,
		AdsetName:    adset.Name,
		AdID:         ad.ID,
		AdName:       ad.Name,
		Details:      details,
	}, nil
}
