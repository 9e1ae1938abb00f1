package report

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/config"
	"github.com/agentstation/stocksync/pkg/runlog"
)

func writeLog(t *testing.T, dir string, at time.Time, supplier string) string {
	t.Helper()
	log := runlog.New(runlog.WithClock(func() time.Time { return at }))
	log.StartSupplier(supplier)
	log.LogNotFound(runlog.NotFoundEntry{EAN: "5901234567890", Supplier: supplier})
	log.LogFlagged(runlog.FlaggedEntry{SKU: "A2", Supplier: supplier, Reason: "high_quantity_to_zero (was 60, now 0)", OldQuantity: 60})
	log.EndSupplier("done")
	path, err := log.Save(dir)
	require.NoError(t, err)
	return path
}

func execute(t *testing.T, app application.Application, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func settingsApp(dir, format string) *application.Mock {
	return &application.Mock{
		SettingsFunc:     func() (*config.Config, error) { return &config.Config{LogDir: dir}, nil },
		OutputFormatFunc: func() string { return format },
	}
}

func TestReportLatest(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), "old")
	writeLog(t, dir, time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC), "new")

	out, err := execute(t, settingsApp(dir, "json"))
	require.NoError(t, err)
	assert.Equal(t, "new", gjson.Get(out, "suppliers_processed.0").String())
	assert.Equal(t, int64(1), gjson.Get(out, "summary.not_found_in_shopify").Int())
}

func TestReportFile(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), "acme")
	writeLog(t, dir, time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC), "beta")

	out, err := execute(t, settingsApp(dir, "table"), path)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Base(path))
	assert.Contains(t, out, "acme")
	assert.Contains(t, out, "high_quantity_to_zero")
	assert.Contains(t, out, "5901234567890")
	assert.Contains(t, out, "No errors.")
	assert.Contains(t, out, "! Run finished with items to review")
}

func TestReportDirFlagWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), "acme")

	app := &application.Mock{OutputFormatFunc: func() string { return "yaml" }}
	out, err := execute(t, app, "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "suppliers_processed:")
	assert.Contains(t, out, "- acme")
}

func TestReportErrors(t *testing.T) {
	t.Run("empty dir", func(t *testing.T) {
		_, err := execute(t, settingsApp(t.TempDir(), "json"))
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, settingsApp(t.TempDir(), "json"), filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
	t.Run("too many args", func(t *testing.T) {
		_, err := execute(t, settingsApp(t.TempDir(), "json"), "a", "b")
		assert.Error(t, err)
	})
}
