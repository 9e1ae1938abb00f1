package sync

import (
	"context"
	"fmt"

	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/pkg/catalog"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/logging"
	"github.com/agentstation/stocksync/pkg/matcher"
	"github.com/agentstation/stocksync/pkg/runlog"
	"github.com/agentstation/stocksync/pkg/safety"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// Platform is the commerce platform surface the orchestrator drives.
type Platform interface {
	Ping(ctx context.Context) (*platform.Shop, error)
	VariantsWithInventory(ctx context.Context, tags []string) ([]inventory.VariantRecord, error)
	ApplyUpdates(ctx context.Context, updates []inventory.Update, dryRun bool) inventory.ApplyResult
}

// Factory builds a supplier from its configuration.
type Factory func(suppliers.Config) (suppliers.Supplier, error)

// Orchestrator runs suppliers one at a time. It is not safe for concurrent use.
type Orchestrator struct {
	platform Platform
	factory  Factory
	configs  []suppliers.Config
	opts     *Options
}

// New creates an orchestrator for the configured suppliers.
func New(p Platform, factory Factory, configs []suppliers.Config, opts ...Option) *Orchestrator {
	return &Orchestrator{
		platform: p,
		factory:  factory,
		configs:  configs,
		opts:     Defaults().Apply(opts...),
	}
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options {
	return *o.opts
}

// Run processes every selected supplier. The returned error is non-nil only
// for fatal conditions: invalid options or a failed connectivity check.
// Supplier-scoped failures are recorded in the result and its run log. The
// result is non-nil even when a fatal error is returned, so the caller can
// persist whatever the log accumulated.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	log := runlog.New(runlog.WithDryRun(o.opts.DryRun))
	res := &Result{Log: log, DryRun: o.opts.DryRun}

	ctx = logging.WithRunID(ctx, log.RunID)
	logger := logging.FromContext(ctx)

	if err := o.opts.Validate(o.configs); err != nil {
		log.LogError(runlog.ErrorTypeConfiguration, err.Error(), nil)
		return res, err
	}

	shop, err := o.platform.Ping(ctx)
	if err != nil {
		log.LogError(runlog.ErrorTypePlatform, err.Error(), nil)
		return res, err
	}
	logger.Info().
		Str("shop", shop.Name).
		Bool("dry_run", o.opts.DryRun).
		Bool("force", o.opts.Force).
		Msg("Connected to platform")

	selected := o.opts.selected(o.configs)
	if len(selected) == 0 {
		logger.Warn().Msg("No enabled suppliers to process")
		return res, nil
	}

	for _, cfg := range selected {
		if err := ctx.Err(); err != nil {
			log.LogError(runlog.ErrorTypeConfiguration, "run cancelled: "+err.Error(), nil)
			return res, err
		}
		sr := o.runSupplier(logging.WithSupplier(ctx, cfg.Name), log, cfg)
		res.Suppliers = append(res.Suppliers, sr)
	}

	logger.Info().
		Int("suppliers", len(res.Suppliers)).
		Int("updated", log.Summary.Updated).
		Int("flagged", log.Summary.Flagged).
		Int("errors", log.Summary.Errors).
		Str("status", log.ExitStatus().String()).
		Msg("Sync complete")
	return res, nil
}

// pipeline is the state of one supplier run.
type pipeline struct {
	cfg      suppliers.Config
	log      *runlog.Log
	result   *SupplierResult
	entering State
}

// enter marks the stage being attempted; a failure is attributed to it.
func (p *pipeline) enter(s State) {
	p.entering = s
}

// reach completes the stage being attempted.
func (p *pipeline) reach(ctx context.Context) {
	p.result.State = p.entering
	logging.FromContext(ctx).Debug().
		Str("state", p.entering.String()).
		Msg("Supplier pipeline advanced")
}

// runSupplier is the per-supplier boundary: nothing raised inside it,
// panics included, escapes to the next supplier.
func (o *Orchestrator) runSupplier(ctx context.Context, log *runlog.Log, cfg suppliers.Config) (sr SupplierResult) {
	sr = SupplierResult{Name: cfg.Name, Driver: cfg.DriverName(), State: Idle}
	p := &pipeline{cfg: cfg, log: log, result: &sr, entering: CatalogFetched}
	logger := logging.FromContext(ctx)

	log.StartSupplier(cfg.Name)
	defer func() {
		if r := recover(); r != nil {
			o.fail(ctx, p, fmt.Errorf("panic: %v", r))
		}
		log.EndSupplier(sr.State.String())
	}()

	logger.Info().Str("driver", sr.Driver).Str("tag", cfg.Tag).Msg("Processing supplier")

	if err := o.process(ctx, p); err != nil {
		o.fail(ctx, p, err)
		return sr
	}

	p.enter(Done)
	p.reach(ctx)
	logger.Info().
		Int("matched", sr.Matched).
		Int("safe", sr.Safe).
		Int("flagged", sr.Flagged).
		Int("not_found", sr.NotFound).
		Int("no_change", sr.NoChange).
		Msg("Supplier done")
	return sr
}

// fail records a supplier-scoped error and moves the pipeline to Failed.
func (o *Orchestrator) fail(ctx context.Context, p *pipeline, err error) {
	serr := errors.NewSupplierError(p.cfg.Name, p.entering.String(), err)
	p.result.FailedAt = p.entering
	p.result.State = Failed
	p.result.Err = serr

	fields := map[string]any{
		"supplier": p.cfg.Name,
		"state":    p.entering.String(),
	}
	if abort, ok := errors.AsAbort(err); ok {
		fields["reason"] = runlog.ReasonAbortGuard
		fields["searched"] = abort.Searched
		fields["found"] = abort.Found
	}
	p.log.LogError(runlog.ErrorTypeSupplier, serr.Error(), fields)
	logging.FromContext(ctx).Error().
		Err(err).
		Str("state", p.entering.String()).
		Msg("Supplier failed")
}

// process walks one supplier through the pipeline.
func (o *Orchestrator) process(ctx context.Context, p *pipeline) error {
	logger := logging.FromContext(ctx)

	// Catalog
	p.enter(CatalogFetched)
	var tags []string
	if p.cfg.Tag != "" {
		tags = []string{p.cfg.Tag}
	} else {
		logger.Warn().Msg("Supplier has no tag; reading the entire catalog")
	}
	variants, err := o.platform.VariantsWithInventory(ctx, tags)
	if err != nil {
		return err
	}
	idx := catalog.Build(variants)
	p.result.CatalogSize = idx.Len()
	stats := idx.Stats()
	logger.Info().
		Int("variants", idx.Len()).
		Int("identifiers", stats.TotalIdentifiers).
		Int("with_ean", stats.RecordsWithEAN).
		Int("with_sku", stats.RecordsWithSKU).
		Int("duplicate_eans", stats.DuplicateEANs).
		Int("duplicate_skus", stats.DuplicateSKUs).
		Msg("Catalog indexed")
	p.reach(ctx)

	// Supplier session
	p.enter(Authenticated)
	s, err := o.factory(p.cfg)
	if err != nil {
		return err
	}
	var records []inventory.SupplierRecord
	err = suppliers.WithSession(ctx, s, func(ctx context.Context) error {
		p.reach(ctx)
		var cerr error
		records, cerr = o.collect(ctx, p, s, idx)
		return cerr
	})
	if err != nil {
		return err
	}
	p.log.AddSupplierProducts(len(records))
	p.result.Records = len(records)

	// Match
	p.enter(Matched)
	batch := matcher.MatchBatch(records, idx)
	p.log.AddMatched(len(batch.Matched))
	p.result.Matched = len(batch.Matched)
	p.result.NotFound = len(batch.NotFound)
	p.result.Duplicates = len(batch.Duplicates)
	p.reach(ctx)

	// Classify
	p.enter(Classified)
	classified := o.opts.Policy().ProcessBatch(batch.Matched, p.cfg.Name)
	p.result.Safe = len(classified.Safe)
	p.result.Flagged = len(classified.Flagged)
	p.result.NoChange = len(classified.NoChange)
	p.result.Changes = safety.Summarize(classified)
	p.result.FlaggedItems = classified.Flagged
	p.reach(ctx)

	// Apply
	p.enter(Applied)
	if len(classified.Safe) > 0 {
		p.result.Apply = o.platform.ApplyUpdates(ctx, classified.Updates(), o.opts.DryRun)
	}
	p.reach(ctx)

	// Log
	p.enter(Logged)
	o.record(p, idx, batch, classified)
	p.reach(ctx)
	return nil
}

// collect fetches supplier records inside the session. Search suppliers are
// asked only about identifiers on the shelf, and the result is reconciled.
func (o *Orchestrator) collect(ctx context.Context, p *pipeline, s suppliers.Supplier, idx *catalog.Index) ([]inventory.SupplierRecord, error) {
	logger := logging.FromContext(ctx)

	p.enter(SupplierDataFetched)
	switch sup := s.(type) {
	case suppliers.IdentifierSearcher:
		key := sup.SearchKey()
		queries := SelectQueries(idx.Queries(key), key, o.opts.Identifiers, o.opts.Limit)
		p.result.Searched = len(queries)
		if len(queries) == 0 {
			logger.Warn().Str("key", key.String()).Msg("No catalog identifiers to search")
			p.reach(ctx)
			return nil, nil
		}
		logger.Info().Int("identifiers", len(queries)).Str("key", key.String()).Msg("Searching supplier")

		found, err := sup.SearchByIdentifiers(ctx, queries)
		failures, partial := suppliers.AsSearchFailures(err)
		if err != nil && !partial {
			return nil, err
		}
		found = suppliers.FilterValid(ctx, found)
		answered := queries
		if partial {
			answered = ExcludeQueries(queries, key, failures.Queries())
			o.recordSearchFailures(p, failures)
		}
		p.reach(ctx)

		p.enter(Reconciled)
		hits := FoundCount(queries, key, found)
		if hits == 0 {
			return nil, &errors.AbortError{Supplier: p.cfg.Name, Searched: len(queries), Found: 0}
		}
		records := Reconcile(answered, key, found)
		logger.Info().
			Int("searched", len(queries)).
			Int("found", hits).
			Int("failed", len(queries)-len(answered)).
			Int("not_found_on_supplier", len(answered)-hits).
			Msg("Reconciled supplier results")
		p.reach(ctx)
		return records, nil

	case suppliers.InventoryFetcher:
		records, err := sup.FetchInventory(ctx)
		if err != nil {
			return nil, err
		}
		records = SelectRecords(suppliers.FilterValid(ctx, records), o.opts.Identifiers, o.opts.Limit)
		p.reach(ctx)
		return records, nil
	}
	return nil, errors.NewConfigError("supplier "+p.cfg.Name, "driver can neither fetch nor search", errors.ErrNotImplemented)
}

// recordSearchFailures logs each unanswered query as a supplier error.
func (o *Orchestrator) recordSearchFailures(p *pipeline, failures *suppliers.SearchFailures) {
	for _, f := range failures.Failed {
		p.log.LogError(runlog.ErrorTypeSupplier, f.Err.Error(), map[string]any{
			"supplier": p.cfg.Name,
			"reason":   runlog.ReasonSearchFailed,
			"ean":      f.Query.EAN,
			"sku":      f.Query.SKU,
		})
	}
}

// record appends every classified item to the run log. Duplicates hit by a
// supplier record are logged from the match; catalog duplicates nobody hit
// are logged once from the index.
func (o *Orchestrator) record(p *pipeline, idx *catalog.Index, batch matcher.Batch, classified safety.Result) {
	name := p.cfg.Name
	log := p.log

	for _, it := range classified.Safe {
		status := runlog.StatusApplied
		var msg string
		if o.opts.DryRun {
			status = runlog.StatusDryRun
		} else if m, failed := p.result.Apply.Failures[it.InventoryItemID]; failed {
			status = runlog.StatusFailed
			msg = m
		}
		log.LogUpdate(updateEntry(it, status, msg))
		if status == runlog.StatusFailed {
			log.LogError(runlog.ErrorTypeUpdate, msg, map[string]any{
				"supplier":          name,
				"inventory_item_id": it.InventoryItemID,
				"identifier":        identifier.Format(it.EAN, it.SKU),
			})
		}
	}
	for _, it := range classified.NoChange {
		log.LogUpdate(updateEntry(it, "", ""))
	}
	for _, it := range classified.Flagged {
		reason := ""
		if it.Reason != nil {
			reason = it.Reason.String()
		}
		log.LogFlagged(runlog.FlaggedEntry{
			EAN:         it.EAN,
			SKU:         it.SKU,
			Supplier:    name,
			Title:       it.Title,
			Reason:      reason,
			OldQuantity: it.OldQuantity,
			NewQuantity: it.NewQuantity,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
		})
	}
	for _, e := range batch.NotFound {
		log.LogNotFound(runlog.NotFoundEntry{EAN: e.Record.EAN, SKU: e.Record.SKU, Supplier: name})
	}

	hit := make(map[string]struct{})
	for _, e := range batch.Duplicates {
		k := string(e.Outcome.Via) + ":" + e.Outcome.Identifier
		if _, dup := hit[k]; dup {
			continue
		}
		hit[k] = struct{}{}
		bucket, _ := idx.Lookup(e.Outcome.Via, e.Outcome.Identifier)
		log.LogDuplicate(runlog.DuplicateEntry{
			Identifier: e.Outcome.Identifier,
			Type:       e.Outcome.Via.String(),
			Count:      e.Outcome.Count,
			Supplier:   name,
			Source:     runlog.SourceMatch,
			Products:   duplicateProducts(bucket),
		})
	}
	for _, d := range idx.Duplicates() {
		if _, done := hit[string(d.Kind)+":"+d.Identifier]; done {
			continue
		}
		log.LogDuplicate(runlog.DuplicateEntry{
			Identifier: d.Identifier,
			Type:       d.Kind.String(),
			Count:      d.Count,
			Supplier:   name,
			Source:     runlog.SourceCatalog,
			Products:   duplicateProducts(d.Records),
		})
	}
}

func updateEntry(it safety.Item, status runlog.UpdateStatus, msg string) runlog.UpdateEntry {
	return runlog.UpdateEntry{
		EAN:             it.EAN,
		SKU:             it.SKU,
		Supplier:        it.Supplier,
		Title:           it.Title,
		OldQuantity:     it.OldQuantity,
		NewQuantity:     it.NewQuantity,
		ProductID:       it.ProductID,
		VariantID:       it.VariantID,
		InventoryItemID: it.InventoryItemID,
		Status:          status,
		Error:           msg,
	}
}

func duplicateProducts(records []inventory.VariantRecord) []runlog.DuplicateProduct {
	out := make([]runlog.DuplicateProduct, 0, len(records))
	for _, r := range records {
		out = append(out, runlog.DuplicateProduct{
			ProductID: r.ProductID,
			VariantID: r.VariantID,
			Title:     r.Title,
			EAN:       r.EAN,
			SKU:       r.SKU,
			Quantity:  r.Quantity,
		})
	}
	return out
}
