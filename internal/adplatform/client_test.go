package adplatform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roasworks/attribution/internal/platform/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.AdPlatformConfig{
		BaseURL:     srv.URL,
		APIVersion:  "v13.0",
		AccessToken: "test-token",
		Timeout:     5 * time.Second,
	})
	return client, srv
}

func TestGetAdFetchesParentIdentifiers(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v13.0/123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("access_token"); got != "test-token" {
			t.Errorf("missing access token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"123","name":"Spring Sale Ad","adset_id":"45","campaign_id":"67","account_id":"890"}`))
	})

	ad, err := client.GetAd(context.Background(), "123")
	if err != nil {
		t.Fatalf("GetAd returned error: %v", err)
	}
	if ad.AdsetID != "45" || ad.CampaignID != "67" || ad.Name != "Spring Sale Ad" {
		t.Fatalf("unexpected ad %+v", ad)
	}
}

func TestGetInsightsFlattensActions(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v13.0/67/insights" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [{
				"spend": "100.50",
				"actions": [
					{"action_type": "link_click", "value": "42"},
					{"action_type": "lead", "value": "3"},
					{"action_type": "purchase", "value": "5"}
				],
				"action_values": [
					{"action_type": "purchase", "value": "301.25"}
				],
				"purchase_roas": [
					{"action_type": "purchase", "value": "2.997512"}
				]
			}]
		}`))
	})

	stats, err := client.GetInsights(context.Background(), "67", "2022-04-26")
	if err != nil {
		t.Fatalf("GetInsights returned error: %v", err)
	}
	if stats.FBClicks != 42 || stats.FBLeads != 3 || stats.FBSales != 5 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.FBSpend != 100.50 || stats.FBMade != 301.25 {
		t.Fatalf("unexpected amounts: %+v", stats)
	}
}

func TestGetInsightsEmptyDataYieldsZeroStats(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": []}`))
	})

	stats, err := client.GetInsights(context.Background(), "67", "2022-04-26")
	if err != nil {
		t.Fatalf("GetInsights returned error: %v", err)
	}
	if stats.FBSpend != 0 || stats.FBClicks != 0 || stats.FBMade != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestGraphErrorsSurfaceNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"Unsupported get request","type":"GraphMethodException","code":100}}`))
	})

	_, err := client.GetAd(context.Background(), "missing")
	if !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestGraphErrorsCarryCodeAndType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"OAuthException","code":17}}`))
	})

	_, err := client.GetAd(context.Background(), "123")
	var graphErr *GraphError
	if !errors.As(err, &graphErr) {
		t.Fatalf("expected *GraphError, got %T", err)
	}
	if graphErr.Code != 17 || graphErr.Type != "OAuthException" {
		t.Fatalf("unexpected graph error %+v", graphErr)
	}
}
