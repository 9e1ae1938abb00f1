package searchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

type fakeAPI struct {
	*httptest.Server
	searches int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "shop" || body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-1"}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.searches, 1)
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("q") {
		case "5901234567890":
			_, _ = w.Write([]byte(`{"results":[{"ean":"5901234567890","sku":"NB-1","quantity":8,"name":"Leash"}]}`))
		case "4006381333931":
			_, _ = w.Write([]byte(`[{"ean":"4006381333931","status":"Udsolgt"}]`))
		case "PC-1":
			_, _ = w.Write([]byte(`{"items":[{"sku":"PC-10","stock":1},{"sku":"pc-1","ean":"5701234567892","stock":"5 stk"}]}`))
		case "PC-2":
			_, _ = w.Write([]byte(`{"sku":"PC-2","ean":"5709999999999","stock":4}`))
		case "BROKEN":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newSupplier(t *testing.T, api *fakeAPI, settings map[string]any) *Supplier {
	t.Helper()
	base := map[string]any{"base_url": api.URL, "delay": "0s", "retry_backoff": "0s"}
	for k, v := range settings {
		base[k] = v
	}
	s, err := New(suppliers.Config{
		Name:          "nordic",
		Username:      "shop",
		Password:      "pw",
		Settings:      base,
		StatusMapping: suppliers.NewStatusMapping(map[string]int{"udsolgt": 0}),
	})
	require.NoError(t, err)
	sup := s.(*Supplier)
	sup.sleep = func(context.Context, time.Duration) error { return nil }
	return sup
}

func TestNewValidatesSettings(t *testing.T) {
	_, err := New(suppliers.Config{Name: "x"})
	assert.True(t, errors.IsConfig(err))

	_, err = New(suppliers.Config{Name: "x", Settings: map[string]any{"base_url": "http://x", "search_key": "upc"}})
	assert.True(t, errors.IsConfig(err))
}

func TestSearchByEAN(t *testing.T) {
	api := newFakeAPI(t)
	s := newSupplier(t, api, nil)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))
	assert.Equal(t, identifier.EAN, s.SearchKey())

	records, err := s.SearchByIdentifiers(ctx, []inventory.Query{
		{EAN: "5901234567890", SKU: "A1"},
		{EAN: "4006381333931"},
		{EAN: "96385074"},
		{SKU: "NO-EAN"},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "5901234567890", records[0].EAN)
	assert.Equal(t, "NB-1", records[0].SKU)
	assert.Equal(t, 8, records[0].Quantity)
	assert.Equal(t, "Leash", records[0].SupplierData["name"])

	assert.Equal(t, 0, records[1].Quantity)
	assert.Equal(t, "Udsolgt", records[1].RawStatus)

	assert.Equal(t, int32(3), atomic.LoadInt32(&api.searches), "queries without a search identifier are skipped")
	require.NoError(t, s.Cleanup())
}

func TestSearchBySKUVerifiesEAN(t *testing.T) {
	api := newFakeAPI(t)
	s := newSupplier(t, api, map[string]any{"search_key": "sku"})
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))

	records, err := s.SearchByIdentifiers(ctx, []inventory.Query{
		{SKU: "PC-1", EAN: "5701234567892"},
		{SKU: "PC-2", EAN: "5701111111111"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1, "EAN mismatch counts as not found")
	assert.Equal(t, "pc-1", records[0].SKU)
	assert.Equal(t, 5, records[0].Quantity)
}

func TestSearchReportsFailedQueries(t *testing.T) {
	api := newFakeAPI(t)
	s := newSupplier(t, api, map[string]any{"search_key": "sku"})
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))

	records, err := s.SearchByIdentifiers(ctx, []inventory.Query{
		{SKU: "PC-1", EAN: "5701234567892"},
		{SKU: "BROKEN", EAN: "96385074"},
		{SKU: "GONE"},
	})
	require.Error(t, err)
	require.Len(t, records, 1, "found records are returned alongside the failures")
	assert.Equal(t, "pc-1", records[0].SKU)

	failures, ok := suppliers.AsSearchFailures(err)
	require.True(t, ok, err.Error())
	assert.Equal(t, "nordic", failures.Supplier)
	assert.Equal(t, []inventory.Query{{SKU: "BROKEN", EAN: "96385074"}}, failures.Queries(), "a 404 is not found, not a failure")
}

func TestAuthenticateWithStaticToken(t *testing.T) {
	api := newFakeAPI(t)
	s := newSupplier(t, api, map[string]any{"token": "tok-1"})
	s.cfg.Password = ""
	require.NoError(t, s.Authenticate(context.Background()))

	records, err := s.SearchByIdentifiers(context.Background(), []inventory.Query{{EAN: "5901234567890"}})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAuthenticateFailure(t *testing.T) {
	api := newFakeAPI(t)
	s := newSupplier(t, api, nil)
	s.cfg.Password = "nope"

	err := s.Authenticate(context.Background())
	assert.True(t, errors.IsAuthentication(err))

	_, err = s.SearchByIdentifiers(context.Background(), []inventory.Query{{EAN: "5901234567890"}})
	assert.True(t, errors.IsAuthentication(err))
}

func TestSearchWaitsBetweenQueries(t *testing.T) {
	api := newFakeAPI(t)
	s := newSupplier(t, api, map[string]any{"delay": "250ms"})
	var waits []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	require.NoError(t, s.Authenticate(context.Background()))

	_, err := s.SearchByIdentifiers(context.Background(), []inventory.Query{
		{EAN: "5901234567890"}, {EAN: "4006381333931"}, {EAN: "96385074"},
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, waits)
}
