package feedfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocksync/internal/suppliers/testhelper"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

func fetch(t *testing.T, settings map[string]any) []inventory.SupplierRecord {
	t.Helper()
	s, err := New(suppliers.Config{
		Name:          "feed",
		Settings:      settings,
		StatusMapping: suppliers.NewStatusMapping(map[string]int{"udsolgt": 0}),
	})
	require.NoError(t, err)

	var records []inventory.SupplierRecord
	err = suppliers.WithSession(context.Background(), s, func(ctx context.Context) error {
		var ferr error
		records, ferr = s.(suppliers.InventoryFetcher).FetchInventory(ctx)
		return ferr
	})
	require.NoError(t, err)
	assert.Nil(t, s.(*Supplier).file, "cleanup closes the feed")
	return records
}

func TestFetchYAMLList(t *testing.T) {
	records := fetch(t, map[string]any{"path": testhelper.Path(t, "stock.yaml")})
	require.Len(t, records, 3)

	assert.Equal(t, inventory.SupplierRecord{
		EAN: "5901234567890", SKU: "FF-1", Quantity: 14,
		SupplierData: map[string]any{"name": "Dog bed"},
	}, records[0])
	assert.Equal(t, suppliers.InStockQuantity, records[1].Quantity)
	assert.Equal(t, "In Stock", records[1].RawStatus)
	assert.Equal(t, 3, records[2].Quantity)
}

func TestFetchYAMLWrapped(t *testing.T) {
	records := fetch(t, map[string]any{"path": testhelper.Path(t, "wrapped.yml")})
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Quantity)
	assert.Equal(t, 0, records[1].Quantity)
}

func TestFetchCSV(t *testing.T) {
	records := fetch(t, map[string]any{"path": testhelper.Path(t, "stock.csv")})
	require.Len(t, records, 3)

	assert.Equal(t, "FF-1", records[0].SKU)
	assert.Equal(t, 14, records[0].Quantity)
	assert.Equal(t, suppliers.LowStockQuantity, records[1].Quantity)
	assert.Equal(t, "4006381333931", records[2].EAN)
	assert.Equal(t, 0, records[2].Quantity, "negative quantities clamp to zero")
}

func TestCSVRequiresIdentifierColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,quantity\nx,1\n"), 0o600))

	s, err := New(suppliers.Config{Name: "feed", Settings: map[string]any{"path": path}})
	require.NoError(t, err)
	require.NoError(t, s.Authenticate(context.Background()))
	defer func() { _ = s.Cleanup() }()

	_, err = s.(*Supplier).FetchInventory(context.Background())
	var perr *errors.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestMissingFeedFailsAuthentication(t *testing.T) {
	s, err := New(suppliers.Config{Name: "feed", Settings: map[string]any{"path": filepath.Join(t.TempDir(), "nope.yaml")}})
	require.NoError(t, err)
	assert.True(t, errors.IsAuthentication(s.Authenticate(context.Background())))
	assert.NoError(t, s.Cleanup())
}

func TestNewValidatesSettings(t *testing.T) {
	_, err := New(suppliers.Config{Name: "feed"})
	assert.True(t, errors.IsConfig(err))

	_, err = New(suppliers.Config{Name: "feed", Settings: map[string]any{"path": "x.json", "format": "json"}})
	assert.True(t, errors.IsConfig(err))

	s, err := New(suppliers.Config{Name: "feed", Settings: map[string]any{"path": "x.CSV"}})
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, s.(*Supplier).format)
}
