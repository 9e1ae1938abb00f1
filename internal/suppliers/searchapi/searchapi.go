// Package searchapi implements the identifier-search supplier driver: the
// supplier is asked about each catalog identifier in turn and answers with
// zero or more hits.
package searchapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/agentstation/stocksync/internal/transport"
	"github.com/agentstation/stocksync/pkg/constants"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/logging"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// DriverName is the registry key of this driver.
const DriverName = "search_api"

var (
	resultKeys   = []string{"results", "items", "products", "data"}
	quantityKeys = []string{"quantity", "stock", "available", "inventory", "status", "availability"}
)

// Supplier is a search API session.
type Supplier struct {
	cfg        suppliers.Config
	baseURL    string
	searchPath string
	loginPath  string
	key        identifier.Kind
	delay      time.Duration

	client        *transport.Client
	authenticated bool
	sleep         func(ctx context.Context, d time.Duration) error
}

var _ suppliers.IdentifierSearcher = (*Supplier)(nil)

// New creates a search API supplier. Settings: base_url (required),
// search_key (ean|sku, default ean), search_path, login_path, token,
// auth (bearer|query:<param>|header:<name>), delay, requests_per_second,
// max_retries, retry_backoff.
func New(cfg suppliers.Config) (suppliers.Supplier, error) {
	base, err := cfg.Require("base_url")
	if err != nil {
		return nil, err
	}
	key, ok := identifier.ParseKind(cfg.String("search_key", "ean"))
	if !ok {
		return nil, errors.NewConfigError("supplier "+cfg.Name, "search_key must be ean or sku", nil)
	}
	return &Supplier{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
		searchPath: cfg.String("search_path", "/search"),
		loginPath:  cfg.String("login_path", "/auth/login"),
		key:        key,
		delay:      cfg.Duration("delay", constants.SearchDelay),
		sleep:      sleepContext,
	}, nil
}

// Name implements suppliers.Supplier.
func (s *Supplier) Name() string { return s.cfg.Name }

// SearchKey implements suppliers.IdentifierSearcher.
func (s *Supplier) SearchKey() identifier.Kind { return s.key }

// Authenticate uses the static token setting when present, otherwise logs in
// with username and password to obtain one.
func (s *Supplier) Authenticate(ctx context.Context) error {
	s.client = transport.New(s.cfg.Name, transport.AuthFor(s.cfg.String("auth", "bearer")), "",
		transport.WithTimeout(constants.SupplierHTTPTimeout),
		transport.WithRequestsPerSecond(float64(s.cfg.Int("requests_per_second", 0))),
		transport.WithRetries(s.cfg.Int("max_retries", constants.MaxRetries), s.cfg.Duration("retry_backoff", constants.RetryBackoff)),
	)

	if token := s.cfg.String("token", ""); token != "" {
		s.client.SetCredential(token)
		s.authenticated = true
		return nil
	}

	if s.cfg.Username == "" || s.cfg.Password == "" {
		return errors.NewAuthenticationError(s.cfg.Name, "token", "token or username and password are required", nil)
	}

	resp, err := s.client.PostJSON(ctx, s.baseURL+s.loginPath, map[string]string{
		"username": s.cfg.Username,
		"password": s.cfg.Password,
	}, nil)
	if err != nil {
		return errors.NewAuthenticationError(s.cfg.Name, "token", "login failed", err)
	}
	token := gjson.GetBytes(resp.Body, "token").String()
	if token == "" {
		token = gjson.GetBytes(resp.Body, "access_token").String()
	}
	if token == "" {
		return errors.NewAuthenticationError(s.cfg.Name, "token", "login response carried no token", nil)
	}

	s.client.SetCredential(token)
	s.authenticated = true
	logging.FromContext(ctx).Info().Msg("Search API session established")
	return nil
}

// SearchByIdentifiers queries each identifier in turn. A failed search does
// not stop the run: the found records are returned with a
// *suppliers.SearchFailures listing the queries that got no answer.
func (s *Supplier) SearchByIdentifiers(ctx context.Context, queries []inventory.Query) ([]inventory.SupplierRecord, error) {
	if !s.authenticated {
		return nil, errors.NewAuthenticationError(s.cfg.Name, "token", "not authenticated", nil)
	}
	logger := logging.FromContext(ctx)

	var records []inventory.SupplierRecord
	var failed []suppliers.FailedQuery
	total := len(queries)
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n := i + 1; n%constants.ProgressEvery == 0 || n == total {
			logger.Info().Int("searched", n).Int("total", total).Msg("Searching supplier")
		}

		rec, found, err := s.search(ctx, q)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("ean", q.EAN).Str("sku", q.SKU).Msg("Search failed")
			failed = append(failed, suppliers.FailedQuery{Query: q, Err: err})
		case found:
			records = append(records, rec)
		}

		if i < total-1 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return nil, err
			}
		}
	}
	records = suppliers.FilterValid(ctx, records)
	if len(failed) > 0 {
		return records, &suppliers.SearchFailures{Supplier: s.cfg.Name, Failed: failed}
	}
	return records, nil
}

func (s *Supplier) search(ctx context.Context, q inventory.Query) (inventory.SupplierRecord, bool, error) {
	term := q.EAN
	if s.key == identifier.SKU {
		term = q.SKU
	}
	want, ok := identifier.Normalize(s.key, term)
	if !ok {
		return inventory.SupplierRecord{}, false, nil
	}

	v := url.Values{}
	v.Set("q", want)
	resp, err := s.client.Do(ctx, &transport.Request{Method: http.MethodGet, URL: s.baseURL + s.searchPath + "?" + v.Encode()})
	if err != nil {
		if errors.IsNotFound(err) || isStatus(err, http.StatusNotFound) {
			return inventory.SupplierRecord{}, false, nil
		}
		return inventory.SupplierRecord{}, false, err
	}

	for _, hit := range results(gjson.ParseBytes(resp.Body)) {
		rec := s.parseHit(hit)
		got, ok := identifier.Normalize(s.key, identifierOf(rec, s.key))
		if !ok || got != want {
			continue
		}
		if s.key == identifier.SKU && q.EAN != "" && rec.EAN != "" {
			expected, _ := identifier.NormalizeEAN(q.EAN)
			actual, _ := identifier.NormalizeEAN(rec.EAN)
			if expected != actual {
				logging.FromContext(ctx).Warn().
					Str("sku", want).
					Str("expected_ean", expected).
					Str("found_ean", actual).
					Msg("EAN mismatch on supplier, ignoring hit")
				return inventory.SupplierRecord{}, false, nil
			}
		}
		if rec.EAN == "" {
			rec.EAN = q.EAN
		}
		if rec.SKU == "" {
			rec.SKU = q.SKU
		}
		return rec, true, nil
	}
	return inventory.SupplierRecord{}, false, nil
}

func (s *Supplier) parseHit(hit gjson.Result) inventory.SupplierRecord {
	rec := inventory.SupplierRecord{
		EAN: strings.TrimSpace(hit.Get("ean").String()),
		SKU: strings.TrimSpace(hit.Get("sku").String()),
	}
	for _, key := range quantityKeys {
		v := hit.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type == gjson.String {
			rec.RawStatus = v.String()
			rec.Quantity = suppliers.ParseStatus(v.String(), s.cfg.StatusMapping)
		} else {
			rec.Quantity = suppliers.ParseStatus(v.Float(), s.cfg.StatusMapping)
		}
		break
	}
	rec.SupplierData = map[string]any{
		"name": hit.Get("name").Value(),
		"url":  hit.Get("url").Value(),
	}
	return rec
}

// Cleanup implements suppliers.Supplier.
func (s *Supplier) Cleanup() error {
	s.authenticated = false
	s.client = nil
	return nil
}

func results(root gjson.Result) []gjson.Result {
	if root.IsArray() {
		return root.Array()
	}
	for _, key := range resultKeys {
		if v := root.Get(key); v.IsArray() {
			return v.Array()
		}
	}
	if root.IsObject() && (root.Get("ean").Exists() || root.Get("sku").Exists()) {
		return []gjson.Result{root}
	}
	return nil
}

func identifierOf(rec inventory.SupplierRecord, kind identifier.Kind) string {
	if kind == identifier.SKU {
		return rec.SKU
	}
	return rec.EAN
}

func isStatus(err error, status int) bool {
	var apiErr *errors.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
