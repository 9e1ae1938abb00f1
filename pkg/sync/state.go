package sync

// State is a stage of one supplier's pipeline. Stages run in declaration
// order; Failed is terminal and reachable from any stage.
type State int

// Pipeline states.
const (
	Idle State = iota
	CatalogFetched
	Authenticated
	SupplierDataFetched
	Reconciled
	Matched
	Classified
	Applied
	Logged
	Done
	Failed
)

var stateNames = [...]string{
	Idle:                "idle",
	CatalogFetched:      "catalog_fetched",
	Authenticated:       "authenticated",
	SupplierDataFetched: "supplier_data_fetched",
	Reconciled:          "reconciled",
	Matched:             "matched",
	Classified:          "classified",
	Applied:             "applied",
	Logged:              "logged",
	Done:                "done",
	Failed:              "failed",
}

// String returns the string representation of a state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the pipeline stops in s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
