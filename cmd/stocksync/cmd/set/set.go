// Package set provides the set command.
package set

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/cmd/emoji"
	"github.com/agentstation/stocksync/internal/cmd/output"
	"github.com/agentstation/stocksync/internal/cmd/table"
	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/pkg/catalog"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
)

// Flags holds the set command flags.
type Flags struct {
	Location int64
	DryRun   bool
}

// Result describes one manual write.
type Result struct {
	Identifier      string `json:"identifier" yaml:"identifier"`
	Title           string `json:"title" yaml:"title"`
	ProductID       int64  `json:"product_id" yaml:"product_id"`
	VariantID       int64  `json:"variant_id" yaml:"variant_id"`
	InventoryItemID int64  `json:"inventory_item_id" yaml:"inventory_item_id"`
	LocationID      int64  `json:"location_id" yaml:"location_id"`
	OldQuantity     int    `json:"old_qty" yaml:"old_qty"`
	NewQuantity     int    `json:"new_qty" yaml:"new_qty"`
	DryRun          bool   `json:"dry_run" yaml:"dry_run"`
}

// NewCommand creates the set command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "set <ean|sku> <quantity>",
		GroupID: "management",
		Short:   "Set the stock of one variant by hand",
		Long: `Set looks a variant up by EAN or SKU across the whole catalog and writes
the given quantity at the primary location, or at --location. It bypasses
the suppliers and the safety checks, and is meant for restoring stock after
a bad run. An identifier shared by several variants is refused.`,
		Example: `  stocksync set 5901234567890 12            # Restore one variant
  stocksync set ABC-123 0 --dry-run          # Show what would be written
  stocksync set 5901234567890 4 --location 9 # Write at a specific location`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil || qty < 0 {
				return &errors.ValidationError{Field: "quantity", Value: args[1], Message: "must be a non-negative integer"}
			}

			client, err := app.Platform()
			if err != nil {
				return err
			}
			res, err := run(cmd.Context(), client, args[0], qty, flags)
			if err != nil {
				return err
			}

			app.Logger().Info().
				Str("identifier", res.Identifier).
				Int64("inventory_item_id", res.InventoryItemID).
				Int("old_qty", res.OldQuantity).
				Int("new_qty", res.NewQuantity).
				Bool("dry_run", res.DryRun).
				Msg("Inventory set")

			w := cmd.OutOrStdout()
			if f := output.DetectFormat(app.OutputFormat()); !f.IsTable() {
				return output.NewFormatter(f).Format(w, res)
			}
			if err := output.Tables(w, toTableData(res)); err != nil {
				return err
			}
			if res.DryRun {
				fmt.Fprintf(w, "%s Dry run: %s would change %d -> %d\n", emoji.Info, res.Identifier, res.OldQuantity, res.NewQuantity)
				return nil
			}
			fmt.Fprintf(w, "%s %s set %d -> %d\n", emoji.Success, res.Identifier, res.OldQuantity, res.NewQuantity)
			return nil
		},
	}

	cmd.Flags().Int64Var(&flags.Location, "location", 0, "location ID to write at (default: the primary location)")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "look the variant up without writing")

	return cmd
}

func run(ctx context.Context, client *platform.Client, raw string, qty int, flags *Flags) (*Result, error) {
	variants, err := client.VariantsWithInventory(ctx, nil)
	if err != nil {
		return nil, err
	}
	rec, id, err := find(catalog.Build(variants), raw)
	if err != nil {
		return nil, err
	}

	locationID := flags.Location
	if locationID == 0 {
		loc, err := client.PrimaryLocation(ctx)
		if err != nil {
			return nil, err
		}
		locationID = loc.ID
	}

	res := &Result{
		Identifier:      id,
		Title:           rec.Title,
		ProductID:       rec.ProductID,
		VariantID:       rec.VariantID,
		InventoryItemID: rec.InventoryItemID,
		LocationID:      locationID,
		OldQuantity:     rec.Quantity,
		NewQuantity:     qty,
		DryRun:          flags.DryRun,
	}
	if flags.DryRun {
		return res, nil
	}
	if err := client.SetInventory(ctx, rec.InventoryItemID, locationID, qty); err != nil {
		return nil, err
	}
	return res, nil
}

// find resolves raw as an EAN first, then as a SKU.
func find(idx *catalog.Index, raw string) (inventory.VariantRecord, string, error) {
	for _, kind := range []identifier.Kind{identifier.EAN, identifier.SKU} {
		id, ok := identifier.Normalize(kind, raw)
		if !ok {
			continue
		}
		bucket, found := idx.Lookup(kind, id)
		if !found {
			continue
		}
		if len(bucket) > 1 {
			return inventory.VariantRecord{}, id, &errors.ValidationError{
				Field:   kind.String(),
				Value:   id,
				Message: fmt.Sprintf("shared by %d variants; fix the catalog first", len(bucket)),
			}
		}
		return bucket[0], id, nil
	}
	return inventory.VariantRecord{}, raw, errors.NewNotFoundError("variant", raw)
}

func toTableData(res *Result) table.Data {
	return table.Data{
		Title:   "Inventory",
		Headers: []string{"Field", "Value"},
		Rows: [][]string{
			{"Identifier", res.Identifier},
			{"Title", res.Title},
			{"Variant ID", strconv.FormatInt(res.VariantID, 10)},
			{"Inventory item", strconv.FormatInt(res.InventoryItemID, 10)},
			{"Location ID", strconv.FormatInt(res.LocationID, 10)},
			{"Current", strconv.Itoa(res.OldQuantity)},
			{"New", strconv.Itoa(res.NewQuantity)},
		},
	}
}
