package domain

// IdentifierKind enumerates the recognised shapes of a raw customer identifier.
type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierIPv4  IdentifierKind = "ipv4"
	IdentifierIPv6  IdentifierKind = "ipv6"
	IdentifierName  IdentifierKind = "name"
)

// Identifier is a classified customer identifier. Immutable once created.
type Identifier struct {
	Kind  IdentifierKind `json:"kind" firestore:"kind"`
	Value string         `json:"value" firestore:"value"`
}

// RawEvent is an untrusted payload from any ingestion source. Every field is
// optional; normalization tolerates total absence of any of them. Timestamp
// fields may arrive in seconds or milliseconds depending on the source.
type RawEvent struct {
	AdID   string `json:"ad_id,omitempty" firestore:"ad_id,omitempty"`
	FBAdID string `json:"fb_ad_id,omitempty" firestore:"fb_ad_id,omitempty"`
	HAdID  string `json:"h_ad_id,omitempty" firestore:"h_ad_id,omitempty"`

	CreatedAtUnixTimestamp *int64 `json:"created_at_unix_timestamp,omitempty" firestore:"created_at_unix_timestamp,omitempty"`
	UTCUnixTime            *int64 `json:"utc_unix_time,omitempty" firestore:"utc_unix_time,omitempty"`
	UTCISODatetime         string `json:"utc_iso_datetime,omitempty" firestore:"utc_iso_datetime,omitempty"`
	UnixDatetime           *int64 `json:"unix_datetime,omitempty" firestore:"unix_datetime,omitempty"`
}

// NormalizedEvent is the canonical (ad_id, timestamp) form of a raw event.
// Timestamp is always unix seconds; Date is the UTC calendar date.
type NormalizedEvent struct {
	AdID      string `json:"ad_id" firestore:"ad_id"`
	Timestamp int64  `json:"timestamp" firestore:"timestamp"`
	Date      string `json:"date" firestore:"date"`
}

// AssetDetails is the canonical hierarchy metadata snapshot cached per ad.
type AssetDetails struct {
	AssetID      string `json:"asset_id" firestore:"asset_id"`
	AssetName    string `json:"asset_name" firestore:"asset_name"`
	CampaignID   string `json:"campaign_id" firestore:"campaign_id"`
	CampaignName string `json:"campaign_name" firestore:"campaign_name"`
	AdsetID      string `json:"adset_id,omitempty" firestore:"adset_id,omitempty"`
	AdsetName    string `json:"adset_name,omitempty" firestore:"adset_name,omitempty"`
	AdID         string `json:"ad_id,omitempty" firestore:"ad_id,omitempty"`
	AdName       string `json:"ad_name,omitempty" firestore:"ad_name,omitempty"`
}

// AdAsset is one node of the campaign -> adset -> ad hierarchy. A degenerate
// asset (platform miss) carries only AssetID.
type AdAsset struct {
	AccountID    string        `json:"account_id,omitempty" firestore:"account_id,omitempty"`
	AssetID      string        `json:"asset_id" firestore:"asset_id"`
	AssetName    string        `json:"asset_name,omitempty" firestore:"asset_name,omitempty"`
	CampaignID   string        `json:"campaign_id,omitempty" firestore:"campaign_id,omitempty"`
	CampaignName string        `json:"campaign_name,omitempty" firestore:"campaign_name,omitempty"`
	AdsetID      string        `json:"adset_id,omitempty" firestore:"adset_id,omitempty"`
	AdsetName    string        `json:"adset_name,omitempty" firestore:"adset_name,omitempty"`
	AdID         string        `json:"ad_id,omitempty" firestore:"ad_id,omitempty"`
	AdName       string        `json:"ad_name,omitempty" firestore:"ad_name,omitempty"`
	Details      *AssetDetails `json:"details,omitempty" firestore:"details,omitempty"`
}

// Resolved reports whether the asset carries a complete hierarchy snapshot.
func (a AdAsset) Resolved() bool {
	return a.Details != nil && a.Details.CampaignID != ""
}

// SpendStats holds ad-platform side metrics for one asset and one date.
type SpendStats struct {
	FBClicks float64 `json:"fbclicks" firestore:"fbclicks"`
	FBSpend  float64 `json:"fbspend" firestore:"fbspend"`
	FBMade   float64 `json:"fbmade" firestore:"fbmade"`
	FBSales  float64 `json:"fbsales" firestore:"fbsales"`
	FBRoas   float64 `json:"fbroas" firestore:"fbroas"`
	FBLeads  float64 `json:"fbleads" firestore:"fbleads"`
}

// RevenueStats holds order/payment side metrics for one asset and one date.
type RevenueStats struct {
	RoasClicks    float64 `json:"roasclicks" firestore:"roasclicks"`
	RoasSales     float64 `json:"roassales" firestore:"roassales"`
	RoasCustomers float64 `json:"roascustomers" firestore:"roascustomers"`
	RoasLeads     float64 `json:"roasleads" firestore:"roasleads"`
	RoasRevenue   float64 `json:"roasrevenue" firestore:"roasrevenue"`
	RoasSpend     float64 `json:"roasspend" firestore:"roasspend"`
}

// MergedStats is the full derived stat set persisted on report nodes. Every
// ratio field is finite; safe defaults replace divisions by zero.
type MergedStats struct {
	FBClicks      float64 `json:"fbclicks" firestore:"fbclicks"`
	FBLeads       float64 `json:"fbleads" firestore:"fbleads"`
	FBSales       float64 `json:"fbsales" firestore:"fbsales"`
	FBCustomers   float64 `json:"fbcustomers" firestore:"fbcustomers"`
	FBSpend       float64 `json:"fbspend" firestore:"fbspend"`
	FBMade        float64 `json:"fbmade" firestore:"fbmade"`
	FBRevenue     float64 `json:"fbrevenue" firestore:"fbrevenue"`
	RoasClicks    float64 `json:"roasclicks" firestore:"roasclicks"`
	RoasLeads     float64 `json:"roasleads" firestore:"roasleads"`
	RoasSales     float64 `json:"roassales" firestore:"roassales"`
	RoasCustomers float64 `json:"roascustomers" firestore:"roascustomers"`
	RoasRevenue   float64 `json:"roasrevenue" firestore:"roasrevenue"`
	RoasSpend     float64 `json:"roasspend" firestore:"roasspend"`

	FBRoas                      float64 `json:"fbroas" firestore:"fbroas"`
	Roas                        float64 `json:"roas" firestore:"roas"`
	FBCostPerSale               float64 `json:"fbcostpersale" firestore:"fbcostpersale"`
	RoasCostPerSale             float64 `json:"roascostpersale" firestore:"roascostpersale"`
	FBCostPerLead               float64 `json:"fbcostperlead" firestore:"fbcostperlead"`
	RoasCostPerLead             float64 `json:"roascostperlead" firestore:"roascostperlead"`
	FBCostPerCustomer           float64 `json:"fbcostpercustomer" firestore:"fbcostpercustomer"`
	RoasCostPerCustomer         float64 `json:"roascostpercustomer" firestore:"roascostpercustomer"`
	FBAverageOrderValue         float64 `json:"fbaverageordervalue" firestore:"fbaverageordervalue"`
	RoasAverageOrderValue       float64 `json:"roasaverageordervalue" firestore:"roasaverageordervalue"`
	FBMargin                    float64 `json:"fbmargin" firestore:"fbmargin"`
	RoasMargin                  float64 `json:"roasmargin" firestore:"roasmargin"`
	FBAverageSalesPerCustomer   float64 `json:"fbaveragesalespercustomer" firestore:"fbaveragesalespercustomer"`
	RoasAverageSalesPerCustomer float64 `json:"roasaveragesalespercustomer" firestore:"roasaveragesalespercustomer"`
}

// CartItem is one purchased line item.
type CartItem struct {
	Name   string  `json:"name" firestore:"name"`
	Amount float64 `json:"amount" firestore:"amount"`
}

// CartTotal sums the cart line amounts.
func CartTotal(cart []CartItem) float64 {
	var total float64
	for _, item := range cart {
		total += item.Amount
	}
	return total
}

// OrderRecord is one customer purchase attributed (or attributable) to an ad.
type OrderRecord struct {
	Email      string       `json:"email" firestore:"email"`
	Timestamp  int64        `json:"timestamp" firestore:"timestamp"`
	ReportDate string       `json:"report_date" firestore:"report_date"`
	Cart       []CartItem   `json:"cart" firestore:"cart"`
	Stats      RevenueStats `json:"stats" firestore:"stats"`

	CampaignID   string `json:"campaign_id,omitempty" firestore:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty" firestore:"campaign_name,omitempty"`
	AdsetID      string `json:"adset_id,omitempty" firestore:"adset_id,omitempty"`
	AdsetName    string `json:"adset_name,omitempty" firestore:"adset_name,omitempty"`
	AdID         string `json:"ad_id,omitempty" firestore:"ad_id,omitempty"`
	AdName       string `json:"ad_name,omitempty" firestore:"ad_name,omitempty"`
}

// AttributedEvent is a normalized event tagged with the stream it came from.
// Ad metadata is resolved after cross-stream dedup, keyed by the normalized
// ad id, so the event itself carries no hierarchy fields.
type AttributedEvent struct {
	NormalizedEvent
	From  string `json:"from" firestore:"from"`
	Email string `json:"email" firestore:"email"`
}

// ReportNode is one row of a campaign/adset/ad level report.
type ReportNode struct {
	Type         string        `json:"type" firestore:"type"`
	AssetID      string        `json:"asset_id" firestore:"asset_id"`
	AssetName    string        `json:"asset_name,omitempty" firestore:"asset_name,omitempty"`
	CampaignID   string        `json:"campaign_id" firestore:"campaign_id"`
	CampaignName string        `json:"campaign_name,omitempty" firestore:"campaign_name,omitempty"`
	AdsetID      string        `json:"adset_id,omitempty" firestore:"adset_id,omitempty"`
	AdsetName    string        `json:"adset_name,omitempty" firestore:"adset_name,omitempty"`
	AdID         string        `json:"ad_id,omitempty" firestore:"ad_id,omitempty"`
	AdName       string        `json:"ad_name,omitempty" firestore:"ad_name,omitempty"`
	Stats        MergedStats   `json:"stats" firestore:"stats"`
	OrderItems   []OrderRecord `json:"order_items,omitempty" firestore:"order_items,omitempty"`
}

// AttributionReport groups report nodes per hierarchy level, keyed by asset id.
// Orders that lack a level's id land in an explicit empty-id bucket.
type AttributionReport struct {
	Campaigns map[string]ReportNode `json:"campaigns"`
	Adsets    map[string]ReportNode `json:"adsets"`
	Ads       map[string]ReportNode `json:"ads"`
	Customers []OrderRecord         `json:"customers"`
}

// UserProfile is a stored customer profile with its known identifier set.
type UserProfile struct {
	UserID string   `json:"user_id" firestore:"user_id"`
	Email  string   `json:"email,omitempty" firestore:"email,omitempty"`
	IDs    []string `json:"ids" firestore:"ids"`
}

// ContactProfile holds the secondary contact details on a cart document.
type ContactProfile struct {
	Email string `json:"email,omitempty" firestore:"email,omitempty"`
}

// CartDoc is one shopping-cart webhook document scoped to an account. The
// embedded RawEvent carries whatever tracking fields the webhook captured.
type CartDoc struct {
	RawEvent

	AccountUserID  string         `json:"user_id" firestore:"user_id"`
	Email          string         `json:"email,omitempty" firestore:"email,omitempty"`
	IP             string         `json:"ip,omitempty" firestore:"ip,omitempty"`
	ContactProfile ContactProfile `json:"contact_profile,omitempty" firestore:"contact_profile,omitempty"`
	Cart           []CartItem     `json:"cart,omitempty" firestore:"cart,omitempty"`
}

// Identifiers returns the distinct non-blank identifiers on the document.
func (d CartDoc) Identifiers() []string {
	return UniqueStrings([]string{d.Email, d.ContactProfile.Email, d.IP})
}

// InsightDoc is one cached spend snapshot for an asset, a date, and a level.
type InsightDoc struct {
	AssetID     string       `json:"asset_id" firestore:"asset_id"`
	Date        string       `json:"date" firestore:"date"`
	Type        string       `json:"type" firestore:"type"`
	AdAccountID string       `json:"fb_ad_account_id" firestore:"fb_ad_account_id"`
	Insight     SpendStats   `json:"insight" firestore:"insight"`
	Details     AssetDetails `json:"details" firestore:"details"`
}

// PaymentStatsDoc holds processor-side customer aggregates for one date.
type PaymentStatsDoc struct {
	Date      string                 `json:"date" firestore:"date"`
	UserID    string                 `json:"user_id" firestore:"user_id"`
	Customers map[string]OrderRecord `json:"customers,omitempty" firestore:"customers,omitempty"`
}

// ReportDoc is one persisted report document. Exactly one of the level
// slices is populated, matching Type.
type ReportDoc struct {
	DocID       string `json:"doc_id" firestore:"doc_id"`
	ReportID    string `json:"report_id" firestore:"report_id"`
	Type        string `json:"type" firestore:"type"`
	UserID      string `json:"user_id" firestore:"user_id"`
	Date        string `json:"date" firestore:"date"`
	AdAccountID string `json:"fb_ad_account_id" firestore:"fb_ad_account_id"`
	UpdatedAt   int64  `json:"updated_at" firestore:"updated_at"`

	Campaigns []ReportNode  `json:"campaigns,omitempty" firestore:"campaigns,omitempty"`
	Adsets    []ReportNode  `json:"adsets,omitempty" firestore:"adsets,omitempty"`
	Ads       []ReportNode  `json:"ads,omitempty" firestore:"ads,omitempty"`
	Customers []OrderRecord `json:"customers,omitempty" firestore:"customers,omitempty"`
}

// AdResolution is the error-as-value result of resolving one ad. Exactly one
// of Asset/Err is meaningful; a degenerate asset with no hierarchy is still a
// success (resolution miss, not failure).
type AdResolution struct {
	AdID  string  `json:"ad_id"`
	Asset AdAsset `json:"asset"`
	Err   error   `json:"-"`
}

// Failed reports whether the resolution carries an error.
func (r AdResolution) Failed() bool { return r.Err != nil }
