package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roasworks/attribution/internal/adplatform"
	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/platform/requestctx"
	"github.com/roasworks/attribution/internal/repositories"
)

// ErrSpendStatsInvalidInput indicates the caller supplied invalid stats parameters.
var ErrSpendStatsInvalidInput = errors.New("spend stats: invalid input")

// SpendStatsServiceDeps bundles collaborators required to construct the calculator.
type SpendStatsServiceDeps struct {
	Insights repositories.InsightRepository
	Platform AdPlatformClient
}

type spendStatsService struct {
	insights repositories.InsightRepository
	platform AdPlatformClient
}

var _ SpendStatsService = (*spendStatsService)(nil)

// NewSpendStatsService constructs the spend-stats calculator.
func NewSpendStatsService(deps SpendStatsServiceDeps) (SpendStatsService, error) {
	if deps.Insights == nil {
		return nil, errors.New("spend stats service: insight repository is required")
	}
	if deps.Platform == nil {
		return nil, errors.New("spend stats service: platform client is required")
	}
	return &spendStatsService{
		insights: deps.Insights,
		platform: deps.Platform,
	}, nil
}

// CachedStats returns the stored spend snapshots for one date and hierarchy
// level, keyed by asset id. An asset with no snapshot simply has no entry.
func (s *spendStatsService) CachedStats(ctx context.Context, date, assetType, adAccountID string) (map[string]SpendStats, error) {
	if strings.TrimSpace(date) == "" || strings.TrimSpace(assetType) == "" || strings.TrimSpace(adAccountID) == "" {
		return nil, fmt.Errorf("%w: date, asset type, and ad account are required", ErrSpendStatsInvalidInput)
	}

	docs, err := s.insights.ByDateType(ctx, date, assetType, adAccountID)
	if err != nil {
		return nil, fmt.Errorf("spend stats: cached read: %w", err)
	}

	out := make(map[string]SpendStats, len(docs))
	for _, doc := range docs {
		if doc.AssetID == "" {
			continue
		}
		out[doc.AssetID] = doc.Insight
	}
	return out, nil
}

// FetchStats pulls insight metrics from the ad platform for one asset and
// date and writes the snapshot back. An asset with no insights for the date
// yields all-zero stats, not an error.
func (s *spendStatsService) FetchStats(ctx context.Context, cmd FetchStatsCommand) (SpendStats, error) {
	account := strings.TrimSpace(cmd.AccountUserID)
	assetID := strings.TrimSpace(cmd.Asset.AssetID)
	if assetID == "" {
		assetID = strings.TrimSpace(cmd.Asset.AdID)
	}
	if account == "" || strings.TrimSpace(cmd.AdAccountID) == "" || strings.TrimSpace(cmd.Date) == "" ||
		strings.TrimSpace(cmd.AssetType) == "" || assetID == "" {
		return SpendStats{}, fmt.Errorf("%w: account, ad account, date, asset type, and asset id are required", ErrSpendStatsInvalidInput)
	}

	stats, err := s.platform.GetInsights(ctx, assetID, cmd.Date)
	if err != nil {
		if errors.Is(err, adplatform.ErrAssetNotFound) {
			stats = SpendStats{}
		} else {
			return SpendStats{}, fmt.Errorf("spend stats: fetch insights %s: %w", assetID, err)
		}
	}

	doc := domain.InsightDoc{
		AssetID:     assetID,
		Date:        cmd.Date,
		Type:        cmd.AssetType,
		AdAccountID: cmd.AdAccountID,
		Insight:     stats,
	}
	if cmd.Asset.Details != nil {
		doc.Details = *cmd.Asset.Details
	} else {
		doc.Details = domain.AssetDetails{AssetID: assetID}
	}

	if err := s.insights.Put(ctx, account, doc); err != nil {
		// Non-fatal: the caller still gets the fetched stats.
		requestctx.Logger(ctx).Warn("insight snapshot write failed",
			zap.String("asset_id", assetID),
			zap.String("date", cmd.Date),
			zap.Error(err))
	}

	return stats, nil
}

// RangeStats sums the cached spend metrics for one hierarchy level across a
// set of dates. Dates without snapshots contribute zero.
func (s *spendStatsService) RangeStats(ctx context.Context, adAccountID, assetType string, dates []string) (SpendStats, error) {
	if strings.TrimSpace(adAccountID) == "" || strings.TrimSpace(assetType) == "" || len(dates) == 0 {
		return SpendStats{}, fmt.Errorf("%w: ad account, asset type, and dates are required", ErrSpendStatsInvalidInput)
	}

	var all []SpendStats
	for _, date := range dates {
		cached, err := s.CachedStats(ctx, date, assetType, adAccountID)
		if err != nil {
			return SpendStats{}, err
		}
		for _, stats := range cached {
			all = append(all, stats)
		}
	}
	return domain.SumSpendStats(all), nil
}
