package adplatform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/platform/config"
)

const defaultTimeout = 30 * time.Second

// Insight fields requested for every spend lookup.
var insightFields = []string{"actions", "action_values", "spend", "purchase_roas"}

// ErrAssetNotFound is returned when the Graph API reports a missing object.
var ErrAssetNotFound = errors.New("adplatform: asset not found")

// Ad is the Graph representation of a single ad object.
type Ad struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AdsetID    string `json:"adset_id"`
	CampaignID string `json:"campaign_id"`
	AccountID  string `json:"account_id"`
}

// NamedAsset carries the id and name of an adset or campaign.
type NamedAsset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GraphError mirrors the error envelope returned by the Graph API.
type GraphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Status  int    `json:"-"`
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	return fmt.Sprintf("adplatform: graph error %d (%s): %s", e.Code, e.Type, e.Message)
}

// Client issues ad metadata and insight calls against the Graph API.
type Client struct {
	baseURL    string
	apiVersion string
	token      string
	http       *http.Client
}

// NewClient constructs a Graph API client from the ad platform configuration.
func NewClient(cfg config.AdPlatformConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiVersion: strings.Trim(strings.TrimSpace(cfg.APIVersion), "/"),
		token:      strings.TrimSpace(cfg.AccessToken),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetAd fetches the ad object along with its parent identifiers.
func (c *Client) GetAd(ctx context.Context, adID string) (Ad, error) {
	var ad Ad
	err := c.getJSON(ctx, adID, url.Values{
		"fields": []string{"id,name,adset_id,campaign_id,account_id"},
	}, &ad)
	return ad, err
}

// GetAdset fetches the adset name.
func (c *Client) GetAdset(ctx context.Context, adsetID string) (NamedAsset, error) {
	var asset NamedAsset
	err := c.getJSON(ctx, adsetID, url.Values{
		"fields": []string{"id,name"},
	}, &asset)
	return asset, err
}

// GetCampaign fetches the campaign name.
func (c *Client) GetCampaign(ctx context.Context, campaignID string) (NamedAsset, error) {
	var asset NamedAsset
	err := c.getJSON(ctx, campaignID, url.Values{
		"fields": []string{"id,name"},
	}, &asset)
	return asset, err
}

// GetInsights fetches single-day spend figures for the given asset and
// flattens the action breakdowns into SpendStats.
func (c *Client) GetInsights(ctx context.Context, assetID, date string) (domain.SpendStats, error) {
	var payload insightsPayload
	err := c.getJSON(ctx, assetID+"/insights", url.Values{
		"fields":     []string{strings.Join(insightFields, ",")},
		"time_range": []string{fmt.Sprintf(`{"since":%q,"until":%q}`, date, date)},
	}, &payload)
	if err != nil {
		return domain.SpendStats{}, err
	}
	if len(payload.Data) == 0 {
		return domain.SpendStats{}, nil
	}
	return payload.Data[0].toSpendStats(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	if c == nil || c.baseURL == "" {
		return errors.New("adplatform: client is not configured")
	}

	endpoint, err := url.JoinPath(c.baseURL, c.apiVersion, path)
	if err != nil {
		return err
	}
	if query == nil {
		query = url.Values{}
	}
	if c.token != "" {
		query.Set("access_token", c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeGraphError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func decodeGraphError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))

	var envelope struct {
		Error GraphError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		envelope.Error.Status = resp.StatusCode
		if resp.StatusCode == http.StatusNotFound || envelope.Error.Code == 100 {
			return fmt.Errorf("%w: %s", ErrAssetNotFound, envelope.Error.Message)
		}
		return &envelope.Error
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrAssetNotFound
	}
	return fmt.Errorf("adplatform: graph status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

type insightsPayload struct {
	Data []insightRow `json:"data"`
}

type insightRow struct {
	Spend        string        `json:"spend"`
	Actions      []actionValue `json:"actions"`
	ActionValues []actionValue `json:"action_values"`
	PurchaseRoas []actionValue `json:"purchase_roas"`
}

type actionValue struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

func (r insightRow) toSpendStats() domain.SpendStats {
	stats := domain.SpendStats{
		FBClicks: actionNumber(r.Actions, "link_click"),
		FBLeads:  actionNumber(r.Actions, "lead"),
		FBSales:  actionNumber(r.Actions, "purchase"),
		FBMade:   actionNumber(r.ActionValues, "purchase"),
		FBSpend:  parseNumber(r.Spend),
		FBRoas:   actionNumber(r.PurchaseRoas, "purchase"),
	}
	return stats
}

func actionNumber(actions []actionValue, actionType string) float64 {
	for _, action := range actions {
		if action.ActionType == actionType {
			return parseNumber(action.Value)
		}
	}
	return 0
}

func parseNumber(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return domain.NumOrZero(value)
}
