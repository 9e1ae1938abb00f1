package sync_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/internal/platform/platformtest"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/logging"
	"github.com/agentstation/stocksync/pkg/runlog"
	"github.com/agentstation/stocksync/pkg/suppliers"
	"github.com/agentstation/stocksync/pkg/sync"
)

// session is the lifecycle half shared by the fake suppliers.
type session struct {
	name          string
	authErr       error
	authenticated int
	cleaned       int
}

func (s *session) Name() string { return s.name }

func (s *session) Authenticate(context.Context) error {
	s.authenticated++
	return s.authErr
}

func (s *session) Cleanup() error {
	s.cleaned++
	return nil
}

type fetcher struct {
	session
	records []inventory.SupplierRecord
	err     error
	panics  bool
}

func (f *fetcher) FetchInventory(context.Context) ([]inventory.SupplierRecord, error) {
	if f.panics {
		panic("driver exploded")
	}
	return f.records, f.err
}

type searcher struct {
	session
	key     identifier.Kind
	stock   map[string]int
	broken  map[string]bool
	queries []inventory.Query
}

func (s *searcher) SearchKey() identifier.Kind { return s.key }

func (s *searcher) SearchByIdentifiers(_ context.Context, queries []inventory.Query) ([]inventory.SupplierRecord, error) {
	s.queries = append(s.queries, queries...)
	var out []inventory.SupplierRecord
	var failed []suppliers.FailedQuery
	for _, q := range queries {
		id := q.EAN
		if s.key == identifier.SKU {
			id = q.SKU
		}
		if s.broken[id] {
			failed = append(failed, suppliers.FailedQuery{Query: q, Err: stderrors.New("search " + id + ": status 500")})
			continue
		}
		if qty, ok := s.stock[id]; ok {
			out = append(out, inventory.SupplierRecord{EAN: q.EAN, SKU: q.SKU, Quantity: qty})
		}
	}
	if len(failed) > 0 {
		return out, &suppliers.SearchFailures{Supplier: s.name, Failed: failed}
	}
	return out, nil
}

func products() []platform.Product {
	return []platform.Product{
		{ID: 10, Title: "Ball", Tags: "acme", Variants: []platform.Variant{
			{ID: 100, Title: "Red", SKU: "A1", Barcode: "5901234567890", InventoryItemID: 1000, InventoryQuantity: 10},
			{ID: 101, Title: "Blue", SKU: "A2", InventoryItemID: 1001, InventoryQuantity: 60},
			{ID: 102, Title: "Green", SKU: "A3", Barcode: "4006381333931", InventoryItemID: 1002, InventoryQuantity: 5},
		}},
		{ID: 12, Title: "Cup", Tags: "acme", Variants: []platform.Variant{
			{ID: 120, Title: "Small", SKU: "DUP", InventoryItemID: 1200, InventoryQuantity: 3},
		}},
		{ID: 13, Title: "Mug", Tags: "acme", Variants: []platform.Variant{
			{ID: 130, Title: "Large", SKU: "DUP", InventoryItemID: 1300, InventoryQuantity: 4},
		}},
		{ID: 20, Title: "Rope", Tags: "beta", Variants: []platform.Variant{
			{ID: 200, Title: "1m", Barcode: "11111111", InventoryItemID: 2000, InventoryQuantity: 8},
			{ID: 201, Title: "5m", Barcode: "22222222", InventoryItemID: 2001, InventoryQuantity: 20},
			{ID: 202, Title: "10m", Barcode: "33333333", InventoryItemID: 2002, InventoryQuantity: 2},
		}},
	}
}

func acmeFetcher() *fetcher {
	return &fetcher{
		session: session{name: "acme"},
		records: []inventory.SupplierRecord{
			{EAN: "5901234567890", Quantity: 4}, // safe drop
			{SKU: "A2", Quantity: 0},            // high quantity to zero
			{EAN: "4006381333931", Quantity: 5}, // unchanged
			{SKU: "DUP", Quantity: 1},           // duplicate
			{SKU: "ZZZ", Quantity: 3},           // not in catalog
		},
	}
}

func betaSearcher(stock map[string]int) *searcher {
	return &searcher{session: session{name: "beta"}, key: identifier.EAN, stock: stock}
}

func factory(list ...suppliers.Supplier) sync.Factory {
	byName := map[string]suppliers.Supplier{}
	for _, s := range list {
		byName[s.Name()] = s
	}
	return func(cfg suppliers.Config) (suppliers.Supplier, error) {
		s, ok := byName[cfg.Name]
		if !ok {
			return nil, errors.NewNotFoundError("supplier", cfg.Name)
		}
		return s, nil
	}
}

func configs() []suppliers.Config {
	return []suppliers.Config{
		{Name: "acme", Enabled: true, Tag: "acme"},
		{Name: "beta", Enabled: true, Tag: "beta"},
	}
}

func newPlatform(t *testing.T) (*platformtest.Server, *platform.Client) {
	t.Helper()
	srv := platformtest.New(t)
	srv.SetProducts(products()...)
	return srv, srv.Client(t)
}

func quantity(t *testing.T, srv *platformtest.Server, item int64) int {
	t.Helper()
	q, ok := srv.Quantity(item)
	require.True(t, ok, "item %d not in catalog", item)
	return q
}

func TestRunCatalogDumpSupplier(t *testing.T) {
	srv, client := newPlatform(t)
	acme := acmeFetcher()

	res, err := sync.New(client, factory(acme), configs(), sync.WithSupplier("acme")).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Suppliers, 1)

	sr := res.Suppliers[0]
	assert.Equal(t, sync.Done, sr.State)
	assert.NoError(t, sr.Err)
	assert.Equal(t, 5, sr.CatalogSize)
	assert.Equal(t, 3, sr.Matched)
	assert.Equal(t, 1, sr.Safe)
	assert.Equal(t, 1, sr.Flagged)
	assert.Equal(t, 1, sr.NoChange)
	assert.Equal(t, 1, sr.Duplicates)
	assert.Equal(t, 1, sr.NotFound)
	assert.Equal(t, 1, acme.authenticated)
	assert.Equal(t, 1, acme.cleaned)

	// Only the safe change is written.
	writes := srv.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, platform.InventoryLevel{InventoryItemID: 1000, LocationID: 1, Available: 4}, writes[0])
	assert.Equal(t, 60, quantity(t, srv, 1001))

	log := res.Log
	assert.Equal(t, runlog.Summary{
		TotalSupplierProducts: 5,
		Matched:               3,
		Updated:               1,
		NoChange:              1,
		NotFound:              1,
		Duplicates:            1,
		Flagged:               1,
	}, log.Summary)
	assert.Equal(t, []string{"acme"}, log.SuppliersProcessed)
	assert.Equal(t, "done", log.Suppliers[0].State)

	require.Len(t, log.Updates, 1)
	assert.Equal(t, runlog.StatusApplied, log.Updates[0].Status)
	assert.Equal(t, -6, log.Updates[0].Change)
	assert.Equal(t, "Ball - Red", log.Updates[0].Title)

	require.Len(t, log.Flagged, 1)
	assert.Equal(t, "high_quantity_to_zero (was 60, now 0)", log.Flagged[0].Reason)

	require.Len(t, log.Duplicates, 1)
	assert.Equal(t, runlog.SourceMatch, log.Duplicates[0].Source)
	assert.Equal(t, "DUP", log.Duplicates[0].Identifier)
	assert.Len(t, log.Duplicates[0].Products, 2)

	require.Len(t, log.NotFound, 1)
	assert.Equal(t, "ZZZ", log.NotFound[0].SKU)
	assert.Equal(t, runlog.SuccessWithWarnings, res.ExitStatus())
}

func TestRunForceDisablesSafetyChecks(t *testing.T) {
	srv, client := newPlatform(t)

	res, err := sync.New(client, factory(acmeFetcher()), configs(),
		sync.WithSupplier("acme"), sync.WithForce(true)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Suppliers[0].Safe)
	assert.Equal(t, 0, res.Suppliers[0].Flagged)
	assert.Len(t, srv.Writes(), 2)
	assert.Equal(t, 0, quantity(t, srv, 1001))
}

func TestRunCorrectsOversoldStockToZero(t *testing.T) {
	srv := platformtest.New(t)
	srv.SetProducts(platform.Product{ID: 10, Title: "Ball", Tags: "acme", Variants: []platform.Variant{
		{ID: 100, Title: "Red", Barcode: "5901234567890", InventoryItemID: 1000, InventoryQuantity: -4},
	}})
	acme := &fetcher{
		session: session{name: "acme"},
		records: []inventory.SupplierRecord{{EAN: "5901234567890", Quantity: 0}},
	}

	res, err := sync.New(srv.Client(t), factory(acme), configs(), sync.WithSupplier("acme")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Suppliers[0].Safe)
	assert.Equal(t, 0, res.Suppliers[0].NoChange)
	assert.Equal(t, 0, quantity(t, srv, 1000))
	require.Len(t, res.Log.Updates, 1)
	assert.Equal(t, -4, res.Log.Updates[0].OldQuantity)
	assert.Equal(t, 4, res.Log.Updates[0].Change)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	srv, client := newPlatform(t)

	res, err := sync.New(client, factory(acmeFetcher()), configs(),
		sync.WithSupplier("acme"), sync.WithDryRun(true)).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, srv.Writes())
	assert.Equal(t, 0, srv.Requests("POST /inventory_levels/set.json"))
	assert.True(t, res.Log.DryRun)
	assert.Equal(t, 0, res.Log.Summary.Updated)
	assert.Equal(t, 1, res.Log.Summary.DryRunSkipped)
	require.Len(t, res.Log.Updates, 1)
	assert.Equal(t, runlog.StatusDryRun, res.Log.Updates[0].Status)
	assert.Equal(t, 10, res.Log.Updates[0].OldQuantity)
	assert.Equal(t, 4, res.Log.Updates[0].NewQuantity)
	assert.Equal(t, inventory.ApplyResult{Total: 1, Skipped: 1, Failures: map[int64]string{}}, res.Suppliers[0].Apply)
}

func TestRunSearchSupplierReconcilesMissingIdentifiers(t *testing.T) {
	srv, client := newPlatform(t)
	beta := betaSearcher(map[string]int{"11111111": 6})

	res, err := sync.New(client, factory(beta), configs(), sync.WithSupplier("beta")).Run(context.Background())
	require.NoError(t, err)

	sr := res.Suppliers[0]
	assert.Equal(t, sync.Done, sr.State)
	assert.Equal(t, 3, sr.Searched)
	assert.Equal(t, 3, sr.Records)
	assert.Len(t, beta.queries, 3)

	// Found: 8 -> 6. Absent: 20 -> 0 and 2 -> 0, both below the zero-check threshold.
	assert.Equal(t, 6, quantity(t, srv, 2000))
	assert.Equal(t, 0, quantity(t, srv, 2001))
	assert.Equal(t, 0, quantity(t, srv, 2002))
	assert.Equal(t, 3, res.Log.Summary.Updated)
	assert.Equal(t, runlog.Success, res.ExitStatus())
}

func TestRunAbortGuard(t *testing.T) {
	srv, client := newPlatform(t)
	beta := betaSearcher(nil)

	res, err := sync.New(client, factory(beta), configs(), sync.WithSupplier("beta")).Run(context.Background())
	require.NoError(t, err)

	sr := res.Suppliers[0]
	assert.Equal(t, sync.Failed, sr.State)
	assert.Equal(t, sync.Reconciled, sr.FailedAt)
	assert.True(t, errors.IsAborted(sr.Err))
	assert.Equal(t, 1, beta.cleaned)

	assert.Empty(t, srv.Writes())
	assert.Equal(t, 0, srv.Requests("POST /inventory_levels/set.json"))
	assert.Equal(t, 8, quantity(t, srv, 2000))
	assert.Equal(t, 20, quantity(t, srv, 2001))

	require.Len(t, res.Log.Errors, 1)
	assert.Equal(t, runlog.ErrorTypeSupplier, res.Log.Errors[0].Type)
	assert.Equal(t, "beta", res.Log.Errors[0].Context["supplier"])
	assert.Equal(t, runlog.ReasonAbortGuard, res.Log.Errors[0].Context["reason"])
	assert.Equal(t, 3, res.Log.Errors[0].Context["searched"])
	assert.Equal(t, 0, res.Log.Errors[0].Context["found"])
	assert.Equal(t, "failed", res.Log.Suppliers[0].State)
	assert.Equal(t, runlog.Failure, res.ExitStatus())
	assert.Equal(t, 1, res.ExitStatus().Code())
}

func TestRunFailedSearchesAreNotZeroed(t *testing.T) {
	srv, client := newPlatform(t)
	beta := betaSearcher(map[string]int{"22222222": 20})
	beta.broken = map[string]bool{"33333333": true}

	res, err := sync.New(client, factory(beta), configs(), sync.WithSupplier("beta")).Run(context.Background())
	require.NoError(t, err)

	sr := res.Suppliers[0]
	assert.Equal(t, sync.Done, sr.State)
	assert.Equal(t, 3, sr.Searched)
	assert.Equal(t, 2, sr.Records, "the failed identifier is not reconciled")

	assert.Equal(t, 0, quantity(t, srv, 2000), "absent on the supplier reads as sold out")
	assert.Equal(t, 20, quantity(t, srv, 2001))
	assert.Equal(t, 2, quantity(t, srv, 2002), "failed search leaves stock alone")
	for _, w := range srv.Writes() {
		assert.NotEqual(t, int64(2002), w.InventoryItemID)
	}

	require.Len(t, res.Log.Errors, 1)
	e := res.Log.Errors[0]
	assert.Equal(t, runlog.ErrorTypeSupplier, e.Type)
	assert.Equal(t, runlog.ReasonSearchFailed, e.Context["reason"])
	assert.Equal(t, "33333333", e.Context["ean"])
	assert.Contains(t, e.Message, "status 500")
	assert.Equal(t, 1, res.Log.Suppliers[0].Summary.Errors)
	assert.Equal(t, runlog.Failure, res.ExitStatus())
}

func TestRunIsolatesSupplierFailures(t *testing.T) {
	tests := []struct {
		name     string
		acme     *fetcher
		failedAt sync.State
	}{
		{
			name:     "authentication",
			acme:     &fetcher{session: session{name: "acme", authErr: errors.NewAuthenticationError("acme", "form", "bad password", nil)}},
			failedAt: sync.Authenticated,
		},
		{
			name:     "fetch",
			acme:     &fetcher{session: session{name: "acme"}, err: errors.NewAPIError("acme", http.StatusBadGateway, "upstream")},
			failedAt: sync.SupplierDataFetched,
		},
		{
			name:     "panic",
			acme:     &fetcher{session: session{name: "acme"}, panics: true},
			failedAt: sync.SupplierDataFetched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, client := newPlatform(t)
			beta := betaSearcher(map[string]int{"11111111": 6, "22222222": 20, "33333333": 2})

			res, err := sync.New(client, factory(tt.acme, beta), configs()).Run(context.Background())
			require.NoError(t, err)
			require.Len(t, res.Suppliers, 2)

			acme := res.Suppliers[0]
			assert.Equal(t, sync.Failed, acme.State)
			assert.Equal(t, tt.failedAt, acme.FailedAt)
			var serr *errors.SupplierError
			require.ErrorAs(t, acme.Err, &serr)
			assert.Equal(t, "acme", serr.Supplier)
			assert.Equal(t, 1, tt.acme.cleaned, "cleanup runs on failure")

			// The next supplier still runs and writes.
			assert.Equal(t, sync.Done, res.Suppliers[1].State)
			assert.Equal(t, 6, quantity(t, srv, 2000))
			assert.Equal(t, 60, quantity(t, srv, 1001))

			require.Len(t, res.Log.Errors, 1)
			assert.Equal(t, runlog.ErrorTypeSupplier, res.Log.Errors[0].Type)
			assert.Equal(t, 1, res.Log.Suppliers[0].Summary.Errors)
			assert.Equal(t, 0, res.Log.Suppliers[1].Summary.Errors)
			assert.Len(t, res.Failed(), 1)
		})
	}
}

func TestRunRecordsFailedWrites(t *testing.T) {
	srv, client := newPlatform(t)
	srv.FailItem(2001, http.StatusUnprocessableEntity)
	beta := betaSearcher(map[string]int{"11111111": 6})

	res, err := sync.New(client, factory(beta), configs(), sync.WithSupplier("beta")).Run(context.Background())
	require.NoError(t, err)

	sr := res.Suppliers[0]
	assert.Equal(t, sync.Done, sr.State)
	assert.Equal(t, 3, sr.Apply.Total)
	assert.Equal(t, 2, sr.Apply.Successful)
	assert.Equal(t, 1, sr.Apply.Failed)

	assert.Equal(t, 2, res.Log.Summary.Updated)
	require.Len(t, res.Log.Errors, 1)
	assert.Equal(t, runlog.ErrorTypeUpdate, res.Log.Errors[0].Type)

	statuses := map[int64]runlog.UpdateStatus{}
	for _, u := range res.Log.Updates {
		statuses[u.InventoryItemID] = u.Status
	}
	assert.Equal(t, runlog.StatusFailed, statuses[2001])
	assert.Equal(t, runlog.StatusApplied, statuses[2002])
	assert.Equal(t, runlog.Failure, res.ExitStatus())
}

func TestRunPinsAndLimitsSearches(t *testing.T) {
	_, client := newPlatform(t)
	beta := betaSearcher(map[string]int{"22222222": 20})

	res, err := sync.New(client, factory(beta), configs(),
		sync.WithSupplier("beta"),
		sync.WithIdentifiers("2222-2222", "33333333"),
		sync.WithLimit(1),
		sync.WithDryRun(true),
	).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, beta.queries, 1)
	assert.Equal(t, "22222222", beta.queries[0].EAN)
	assert.Equal(t, 1, res.Suppliers[0].Searched)
	assert.Equal(t, 1, res.Log.Summary.NoChange)
}

func TestRunUntaggedSupplierReadsWholeCatalog(t *testing.T) {
	_, client := newPlatform(t)
	acme := acmeFetcher()
	cfgs := []suppliers.Config{{Name: "acme", Enabled: true}}
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	res, err := sync.New(client, factory(acme), cfgs, sync.WithDryRun(true)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Suppliers[0].CatalogSize)
	assert.True(t, tl.Contains("Supplier has no tag; reading the entire catalog"), tl.Output())
	assert.True(t, tl.Contains(`"supplier":"acme"`), tl.Output())
	assert.True(t, tl.Contains(`"message":"Catalog indexed"`), tl.Output())
	assert.True(t, tl.Contains(`"variants":8`), tl.Output())
}

func TestRunFatalErrors(t *testing.T) {
	t.Run("connectivity", func(t *testing.T) {
		srv := platformtest.New(t)
		cfg := srv.Config()
		cfg.AccessToken = "wrong"
		client, err := platform.New(cfg)
		require.NoError(t, err)
		acme := acmeFetcher()

		res, err := sync.New(client, factory(acme), configs()).Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsAuthentication(err))
		require.NotNil(t, res)
		assert.Empty(t, res.Suppliers)
		assert.Equal(t, 0, acme.authenticated)
		require.Len(t, res.Log.Errors, 1)
		assert.Equal(t, runlog.ErrorTypePlatform, res.Log.Errors[0].Type)
	})

	t.Run("unknown supplier filter", func(t *testing.T) {
		_, client := newPlatform(t)
		res, err := sync.New(client, factory(), configs(), sync.WithSupplier("nope")).Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
		assert.Equal(t, runlog.ErrorTypeConfiguration, res.Log.Errors[0].Type)
	})
}

func TestRunSkipsDisabledSuppliers(t *testing.T) {
	_, client := newPlatform(t)
	acme := acmeFetcher()
	cfgs := []suppliers.Config{{Name: "acme", Enabled: false, Tag: "acme"}}

	res, err := sync.New(client, factory(acme), cfgs).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Suppliers)
	assert.Equal(t, 0, acme.authenticated)

	// Naming a disabled supplier explicitly runs it.
	res, err = sync.New(client, factory(acme), cfgs, sync.WithSupplier("ACME"), sync.WithDryRun(true)).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Suppliers, 1)
}
