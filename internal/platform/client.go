// Package platform is the commerce platform admin API client: paginated
// catalog reads, location resolution and absolute-quantity inventory writes.
package platform

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/stocksync/internal/transport"
	"github.com/agentstation/stocksync/pkg/constants"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/logging"
)

// ServiceName labels platform errors and log lines.
const ServiceName = "shopify"

// Config holds the platform connection settings.
type Config struct {
	ShopURL           string        `mapstructure:"shop_url" json:"shop_url" yaml:"shop_url"`
	AccessToken       string        `mapstructure:"access_token" json:"-" yaml:"-"`
	APIVersion        string        `mapstructure:"api_version" json:"api_version" yaml:"api_version"`
	AuthHeader        string        `mapstructure:"auth_header" json:"auth_header" yaml:"auth_header"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// Validate checks that the required credentials are present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ShopURL) == "" {
		return errors.NewConfigError("platform", "shop_url is required (or set SHOPIFY_SHOP_URL)", nil)
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return errors.NewConfigError("platform", "access_token is required (or set SHOPIFY_ACCESS_TOKEN)", nil)
	}
	return nil
}

// Client talks to the admin API.
type Client struct {
	base string
	http *transport.Client
}

// New creates a client for cfg. Extra transport options are applied after
// the ones derived from cfg.
func New(cfg Config, opts ...transport.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version := cfg.APIVersion
	if version == "" {
		version = constants.DefaultAPIVersion
	}
	header := cfg.AuthHeader
	if header == "" {
		header = constants.DefaultAuthHeader
	}
	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = constants.DefaultRequestsPerSecond
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.ShopURL), "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	topts := []transport.Option{
		transport.WithRequestsPerSecond(rps),
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent("stocksync"),
	}
	topts = append(topts, opts...)

	return &Client{
		base: fmt.Sprintf("%s/admin/api/%s", base, version),
		http: transport.New(ServiceName, transport.AuthFor("header:"+header), cfg.AccessToken, topts...),
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base + "/" + strings.TrimLeft(path, "/")
}

// Ping reads the shop resource as a connectivity and credential check.
func (c *Client) Ping(ctx context.Context) (*Shop, error) {
	var resp shopResponse
	if _, err := c.http.GetJSON(ctx, c.endpoint("shop.json"), &resp); err != nil {
		return nil, errors.WrapResource("fetch", "shop", "", err)
	}
	return &resp.Shop, nil
}

// FetchAllProducts follows Link-header pagination until the last page. When
// tags is non-empty only products carrying at least one of them are returned;
// filtering happens after retrieval. A failed page fails the whole read.
func (c *Client) FetchAllProducts(ctx context.Context, tags []string) ([]Product, error) {
	logger := logging.FromContext(ctx)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(constants.ProductPageSize))
	next := c.endpoint("products.json") + "?" + q.Encode()

	var all []Product
	for page := 1; next != ""; page++ {
		var body productsPage
		resp, err := c.http.GetJSON(ctx, next, &body)
		if err != nil {
			return nil, errors.WrapResource("fetch", "products", fmt.Sprintf("page %d", page), err)
		}
		all = append(all, body.Products...)
		logger.Debug().Int("page", page).Int("products", len(body.Products)).Msg("Fetched product page")
		next = transport.NextLink(resp.Header)
	}

	if len(tags) == 0 {
		return all, nil
	}
	filtered := FilterByTags(all, tags)
	logger.Debug().
		Strs("tags", tags).
		Int("total", len(all)).
		Int("matched", len(filtered)).
		Msg("Filtered products by tag")
	return filtered, nil
}

// FilterByTags keeps products whose comma-separated tag list contains any of
// tags, compared case-insensitively after trimming.
func FilterByTags(products []Product, tags []string) []Product {
	var out []Product
	for _, p := range products {
		if hasAnyTag(p.Tags, tags) {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyTag(list string, tags []string) bool {
	for _, have := range strings.Split(list, ",") {
		have = strings.TrimSpace(have)
		if have == "" {
			continue
		}
		for _, want := range tags {
			if strings.EqualFold(have, strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}

// VariantsWithInventory flattens products into variant records stamped with
// the primary location. The location is resolved once per call.
func (c *Client) VariantsWithInventory(ctx context.Context, tags []string) ([]inventory.VariantRecord, error) {
	products, err := c.FetchAllProducts(ctx, tags)
	if err != nil {
		return nil, err
	}
	loc, err := c.PrimaryLocation(ctx)
	if err != nil {
		return nil, err
	}
	return Flatten(products, loc.ID), nil
}

// Flatten converts products into one VariantRecord per variant. Quantities
// are kept as reported, including negative (oversold) stock.
func Flatten(products []Product, locationID int64) []inventory.VariantRecord {
	var records []inventory.VariantRecord
	for _, p := range products {
		for _, v := range p.Variants {
			productID := v.ProductID
			if productID == 0 {
				productID = p.ID
			}
			records = append(records, inventory.VariantRecord{
				ProductID:       productID,
				VariantID:       v.ID,
				InventoryItemID: v.InventoryItemID,
				LocationID:      locationID,
				SKU:             strings.TrimSpace(v.SKU),
				EAN:             strings.TrimSpace(v.Barcode),
				Title:           fmt.Sprintf("%s - %s", p.Title, v.Title),
				Quantity:        v.InventoryQuantity,
			})
		}
	}
	return records
}

// Locations lists the store's stock locations.
func (c *Client) Locations(ctx context.Context) ([]Location, error) {
	var resp locationsPage
	if _, err := c.http.GetJSON(ctx, c.endpoint("locations.json"), &resp); err != nil {
		return nil, errors.WrapResource("fetch", "locations", "", err)
	}
	return resp.Locations, nil
}

// PrimaryLocation resolves the location all writes go to.
func (c *Client) PrimaryLocation(ctx context.Context) (Location, error) {
	locs, err := c.Locations(ctx)
	if err != nil {
		return Location{}, err
	}
	return SelectPrimaryLocation(locs)
}

// SelectPrimaryLocation prefers the first location that is both active and
// legacy, then the first active one, then the first one listed.
func SelectPrimaryLocation(locs []Location) (Location, error) {
	if len(locs) == 0 {
		return Location{}, errors.NewNotFoundError("location", "primary")
	}
	for _, l := range locs {
		if l.Active && l.Legacy {
			return l, nil
		}
	}
	for _, l := range locs {
		if l.Active {
			return l, nil
		}
	}
	return locs[0], nil
}

// SetInventory sets the available quantity of one item at one location.
func (c *Client) SetInventory(ctx context.Context, inventoryItemID, locationID int64, quantity int) error {
	body := InventoryLevel{InventoryItemID: inventoryItemID, LocationID: locationID, Available: quantity}
	if _, err := c.http.PostJSON(ctx, c.endpoint("inventory_levels/set.json"), body, nil); err != nil {
		return errors.WrapResource("set", "inventory level", strconv.FormatInt(inventoryItemID, 10), err)
	}
	return nil
}

// ApplyUpdates writes each update independently. A failed item is recorded
// and the batch continues. In dry-run mode nothing is written and every item
// counts as skipped.
func (c *Client) ApplyUpdates(ctx context.Context, updates []inventory.Update, dryRun bool) inventory.ApplyResult {
	logger := logging.FromContext(ctx)
	res := inventory.ApplyResult{Total: len(updates), Failures: map[int64]string{}}

	for i, u := range updates {
		if dryRun {
			res.Skipped++
			logger.Debug().
				Int64("inventory_item_id", u.InventoryItemID).
				Int("quantity", u.Quantity).
				Msg("Dry run, skipping write")
			continue
		}

		if err := ctx.Err(); err != nil {
			c.recordFailure(&res, u, err)
			continue
		}

		if err := c.SetInventory(ctx, u.InventoryItemID, u.LocationID, u.Quantity); err != nil {
			c.recordFailure(&res, u, err)
			logger.Warn().Err(err).Int64("inventory_item_id", u.InventoryItemID).Msg("Inventory write failed")
			continue
		}
		res.Successful++

		if (i+1)%constants.ProgressEvery == 0 {
			logger.Info().Int("done", i+1).Int("total", len(updates)).Msg("Applying updates")
		}
	}
	return res
}

func (c *Client) recordFailure(res *inventory.ApplyResult, u inventory.Update, err error) {
	res.Failed++
	res.Errors = append(res.Errors, inventory.UpdateError{
		InventoryItemID: u.InventoryItemID,
		SKU:             u.SKU,
		EAN:             u.EAN,
		Error:           err.Error(),
	})
	res.Failures[u.InventoryItemID] = err.Error()
}
