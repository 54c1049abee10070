package contracts

import "time"

// RefreshState is the lifecycle state of a refresh run
type RefreshState string

const (
	RefreshIdle    RefreshState = "idle"
	RefreshRunning RefreshState = "running"
	RefreshSuccess RefreshState = "success"
	RefreshError   RefreshState = "error"
	RefreshTimeout RefreshState = "timeout"
)

// Terminal reports whether the state is a finished run outcome
func (s RefreshState) Terminal() bool {
	switch s {
	case RefreshSuccess, RefreshError, RefreshTimeout:
		return true
	default:
		return false
	}
}

// RefreshProgress reports how far a running refresh has advanced
type RefreshProgress struct {
	Stage          string `json:"stage"`
	IndicesDone    int    `json:"indices_done"`
	TotalIndices   int    `json:"total_indices"`
	SymbolsFetched int    `json:"symbols_fetched"`
}

// RefreshStatus is the externally visible state of the refresh supervisor.
// Owned by the supervisor, copied out under its lock; consumers receive
// value copies, never the live struct.
type RefreshStatus struct {
	Running    bool            `json:"running"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	LastStatus RefreshState    `json:"last_status"`
	LastError  string          `json:"last_error,omitempty"`
	Progress   RefreshProgress `json:"progress"`
}
