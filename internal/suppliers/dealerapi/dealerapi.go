// Package dealerapi implements the catalog-dump supplier driver for dealer
// portals: a cookie session established by a form login, then a JSON item
// listing fetched in one large page.
package dealerapi

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/agentstation/stocksync/internal/transport"
	"github.com/agentstation/stocksync/pkg/constants"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/logging"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// DriverName is the registry key of this driver.
const DriverName = "dealer_api"

// Alternate field names seen in dealer item payloads, in priority order.
var (
	listKeys     = []string{"Items", "items", "Products", "products", "Data", "data"}
	eanKeys      = []string{"EAN", "ean", "Ean", "Barcode", "barcode"}
	skuKeys      = []string{"ItemNumber", "ItemID", "ItemId", "ProductNumber", "ProductNo", "SKU", "sku", "Number"}
	quantityKeys = []string{"AvailabilityQty", "Stock", "StockLevel", "Quantity", "InStock"}
	nameKeys     = []string{"ProductName", "ProductnameBrand", "Name"}
)

// Supplier is a dealer portal session.
type Supplier struct {
	cfg       suppliers.Config
	portalURL string
	loginURL  string
	apiURL    string
	pageSize  int

	client        *transport.Client
	authenticated bool
}

var _ suppliers.InventoryFetcher = (*Supplier)(nil)

// New creates a dealer portal supplier. Settings: portal_url, api_url
// (required), login_url (defaults to portal_url), page_size.
func New(cfg suppliers.Config) (suppliers.Supplier, error) {
	portal, err := cfg.Require("portal_url")
	if err != nil {
		return nil, err
	}
	api, err := cfg.Require("api_url")
	if err != nil {
		return nil, err
	}
	return &Supplier{
		cfg:       cfg,
		portalURL: portal,
		loginURL:  cfg.String("login_url", portal),
		apiURL:    api,
		pageSize:  cfg.Int("page_size", constants.SupplierPageSize),
	}, nil
}

// Name implements suppliers.Supplier.
func (s *Supplier) Name() string { return s.cfg.Name }

// Authenticate opens the portal, submits the login form and verifies the
// item API answers with JSON inside the session.
func (s *Supplier) Authenticate(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	if s.cfg.Username == "" || s.cfg.Password == "" {
		return errors.NewAuthenticationError(s.cfg.Name, "form", "username and password are required", nil)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return errors.WrapResource("create", "cookie jar", s.cfg.Name, err)
	}
	s.client = transport.New(s.cfg.Name, nil, "",
		transport.WithHTTPClient(&http.Client{Jar: jar, Timeout: constants.SupplierHTTPTimeout}),
		transport.WithRequestsPerSecond(float64(s.cfg.Int("requests_per_second", 0))),
		transport.WithUserAgent("Mozilla/5.0 (compatible; stocksync)"),
	)

	logger.Debug().Str("url", s.portalURL).Msg("Opening dealer portal")
	if _, err := s.client.Do(ctx, &transport.Request{Method: http.MethodGet, URL: s.portalURL}); err != nil {
		return errors.NewAuthenticationError(s.cfg.Name, "form", "portal unreachable", err)
	}

	form := url.Values{}
	form.Set("username", s.cfg.Username)
	form.Set("password", s.cfg.Password)
	form.Set("ForgotPassword", "False")
	logger.Debug().Str("url", s.loginURL).Msg("Submitting login form")
	if _, err := s.client.Do(ctx, transport.NewFormRequest(s.loginURL, form)); err != nil {
		return errors.NewAuthenticationError(s.cfg.Name, "form", "login rejected", err)
	}

	resp, err := s.client.Do(ctx, &transport.Request{Method: http.MethodGet, URL: s.apiURL})
	if err != nil {
		return errors.NewAuthenticationError(s.cfg.Name, "form", "item API not accessible after login", err)
	}
	if !gjson.ValidBytes(resp.Body) || !hasPayload(gjson.ParseBytes(resp.Body)) {
		return errors.NewAuthenticationError(s.cfg.Name, "form", "item API did not return JSON after login; verify credentials", nil)
	}

	s.authenticated = true
	logger.Info().Msg("Dealer portal session established")
	return nil
}

// FetchInventory downloads the item listing and normalizes every item.
func (s *Supplier) FetchInventory(ctx context.Context) ([]inventory.SupplierRecord, error) {
	if !s.authenticated {
		return nil, errors.NewAuthenticationError(s.cfg.Name, "form", "not authenticated", nil)
	}

	q := url.Values{}
	q.Set("PageSize", strconv.Itoa(s.pageSize))
	q.Set("Page", "1")
	sep := "?"
	if strings.Contains(s.apiURL, "?") {
		sep = "&"
	}

	resp, err := s.client.Do(ctx, &transport.Request{Method: http.MethodGet, URL: s.apiURL + sep + q.Encode()})
	if err != nil {
		return nil, errors.WrapResource("fetch", "supplier inventory", s.cfg.Name, err)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, errors.NewParseError("json", s.apiURL, "item listing is not valid JSON", nil)
	}

	items := Items(gjson.ParseBytes(resp.Body))
	records := make([]inventory.SupplierRecord, 0, len(items))
	for _, item := range items {
		records = append(records, ParseItem(item, s.cfg.StatusMapping))
	}
	valid := suppliers.FilterValid(ctx, records)

	logging.FromContext(ctx).Info().
		Int("received", len(items)).
		Int("valid", len(valid)).
		Msg("Fetched dealer inventory")
	return valid, nil
}

// Cleanup implements suppliers.Supplier.
func (s *Supplier) Cleanup() error {
	s.authenticated = false
	s.client = nil
	return nil
}

// Items extracts the item list from a bare array or a wrapped payload.
func Items(root gjson.Result) []gjson.Result {
	if root.IsArray() {
		return root.Array()
	}
	for _, key := range listKeys {
		if v := root.Get(key); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

func hasPayload(root gjson.Result) bool {
	if root.IsArray() {
		return true
	}
	if !root.IsObject() {
		return false
	}
	for _, key := range listKeys {
		if root.Get(key).Exists() {
			return true
		}
	}
	return len(root.Map()) > 0
}

// ParseItem normalizes one dealer item. Negative availability is clamped to
// zero; textual availability goes through the status mapping.
func ParseItem(item gjson.Result, mapping suppliers.StatusMapping) inventory.SupplierRecord {
	rec := inventory.SupplierRecord{
		EAN: strings.TrimSpace(first(item, eanKeys).String()),
		SKU: strings.TrimSpace(first(item, skuKeys).String()),
	}

	qty := first(item, quantityKeys)
	switch qty.Type {
	case gjson.Number:
		rec.Quantity = suppliers.ParseStatus(qty.Float(), mapping)
	case gjson.String:
		rec.RawStatus = qty.String()
		rec.Quantity = suppliers.ParseStatus(qty.String(), mapping)
	case gjson.True:
		rec.Quantity = suppliers.InStockQuantity
	}

	rec.SupplierData = map[string]any{
		"item_number":  item.Get("ItemNumber").Value(),
		"product_name": first(item, nameKeys).Value(),
		"brand":        item.Get("Brand").Value(),
		"price":        item.Get("Price").Value(),
		"sold_out":     item.Get("Soldout").Value(),
		"availability": item.Get("Availability").Value(),
	}
	return rec
}

// first returns the first key that is present and not null or empty.
func first(item gjson.Result, keys []string) gjson.Result {
	for _, key := range keys {
		v := item.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type == gjson.String && strings.TrimSpace(v.Str) == "" {
			continue
		}
		return v
	}
	return gjson.Result{}
}
