// Package feedfile implements a catalog-dump supplier driver backed by a
// stock feed on disk, in YAML or CSV.
package feedfile

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/logging"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// DriverName is the registry key of this driver.
const DriverName = "feed_file"

// Formats understood by the driver.
const (
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// Entry is one line of a feed. Quantity wins over Status when both are set.
type Entry struct {
	EAN      string `yaml:"ean"`
	SKU      string `yaml:"sku"`
	Quantity any    `yaml:"quantity"`
	Status   string `yaml:"status"`
	Name     string `yaml:"name"`
}

type document struct {
	Items []Entry `yaml:"items"`
}

// Supplier reads a feed file. The file is opened in Authenticate and closed
// in Cleanup.
type Supplier struct {
	cfg    suppliers.Config
	path   string
	format string
	file   *os.File
}

var _ suppliers.InventoryFetcher = (*Supplier)(nil)

// New creates a feed file supplier. Settings: path (required), format
// (yaml|csv, inferred from the extension when unset).
func New(cfg suppliers.Config) (suppliers.Supplier, error) {
	path, err := cfg.Require("path")
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(cfg.String("format", ""))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = FormatCSV
		default:
			format = FormatYAML
		}
	}
	if format == "yml" {
		format = FormatYAML
	}
	if format != FormatYAML && format != FormatCSV {
		return nil, errors.NewConfigError("supplier "+cfg.Name, "format must be yaml or csv", nil)
	}
	return &Supplier{cfg: cfg, path: path, format: format}, nil
}

// Name implements suppliers.Supplier.
func (s *Supplier) Name() string { return s.cfg.Name }

// Authenticate opens the feed.
func (s *Supplier) Authenticate(_ context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return errors.NewAuthenticationError(s.cfg.Name, "file", "feed not readable", err)
	}
	s.file = f
	return nil
}

// FetchInventory decodes the feed.
func (s *Supplier) FetchInventory(ctx context.Context) ([]inventory.SupplierRecord, error) {
	if s.file == nil {
		return nil, errors.NewAuthenticationError(s.cfg.Name, "file", "feed not open", nil)
	}

	var (
		entries []Entry
		err     error
	)
	switch s.format {
	case FormatCSV:
		entries, err = decodeCSV(s.file, s.path)
	default:
		entries, err = decodeYAML(s.file, s.path)
	}
	if err != nil {
		return nil, err
	}

	records := make([]inventory.SupplierRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, s.record(e))
	}
	valid := suppliers.FilterValid(ctx, records)
	logging.FromContext(ctx).Info().
		Str("path", s.path).
		Int("entries", len(entries)).
		Int("valid", len(valid)).
		Msg("Read stock feed")
	return valid, nil
}

// Cleanup closes the feed.
func (s *Supplier) Cleanup() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return errors.WrapIO("close", s.path, err)
}

func (s *Supplier) record(e Entry) inventory.SupplierRecord {
	rec := inventory.SupplierRecord{
		EAN: strings.TrimSpace(e.EAN),
		SKU: strings.TrimSpace(e.SKU),
	}
	if q, ok := e.Quantity.(string); ok && strings.TrimSpace(q) == "" {
		e.Quantity = nil
	}
	if e.Quantity != nil {
		rec.Quantity = suppliers.ParseStatus(e.Quantity, s.cfg.StatusMapping)
	} else {
		rec.RawStatus = e.Status
		rec.Quantity = suppliers.ParseStatus(e.Status, s.cfg.StatusMapping)
	}
	if e.Name != "" {
		rec.SupplierData = map[string]any{"name": e.Name}
	}
	return rec
}

func decodeYAML(r io.Reader, path string) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	if _, isList := raw.([]any); isList {
		var list []Entry
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, errors.WrapParse("yaml", path, err)
		}
		return list, nil
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return doc.Items, nil
}

func decodeCSV(r io.Reader, path string) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapParse("csv", path, err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["ean"]; !ok {
		if _, ok := cols["sku"]; !ok {
			return nil, errors.NewParseError("csv", path, "header needs an ean or sku column", nil)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []Entry
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapParse("csv", path, err)
		}
		e := Entry{
			EAN:    cell(row, "ean"),
			SKU:    cell(row, "sku"),
			Status: cell(row, "status"),
			Name:   cell(row, "name"),
		}
		if q := cell(row, "quantity"); q != "" {
			e.Quantity = q
		}
		entries = append(entries, e)
	}
	return entries, nil
}
