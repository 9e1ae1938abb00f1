package suppliers

import (
	"fmt"

	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/inventory"
)

// FailedQuery is a query the supplier could not answer.
type FailedQuery struct {
	Query inventory.Query
	Err   error
}

// SearchFailures reports the queries of a search run that failed. It
// accompanies the records that were found; the failed queries are neither
// found nor absent.
type SearchFailures struct {
	Supplier string
	Failed   []FailedQuery
}

// Error implements the error interface.
func (e *SearchFailures) Error() string {
	if len(e.Failed) == 1 {
		return fmt.Sprintf("1 search failed on %s: %v", e.Supplier, e.Failed[0].Err)
	}
	return fmt.Sprintf("%d searches failed on %s", len(e.Failed), e.Supplier)
}

// Unwrap returns the individual search errors.
func (e *SearchFailures) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

// Queries returns the failed queries.
func (e *SearchFailures) Queries() []inventory.Query {
	qs := make([]inventory.Query, len(e.Failed))
	for i, f := range e.Failed {
		qs[i] = f.Query
	}
	return qs
}

// AsSearchFailures extracts a *SearchFailures from err.
func AsSearchFailures(err error) (*SearchFailures, bool) {
	var sf *SearchFailures
	if errors.As(err, &sf) {
		return sf, true
	}
	return nil, false
}
