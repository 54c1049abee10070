package contracts

import "errors"

// ErrNotFound indicates the external source has no usable data for a
// symbol, or a stored record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoData indicates a run produced zero snapshots across all indices,
// the one condition the orchestrator reports as operation failure.
var ErrNoData = errors.New("no data fetched from any index")
