package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const historyFileName = "alerts_history.json"

// Event records one rule firing.
type Event struct {
	AlertID       string    `json:"alert_id"`
	AlertName     string    `json:"alert_name"`
	Symbols       []string  `json:"symbols"`
	ConditionType string    `json:"condition_type"`
	Timestamp     time.Time `json:"timestamp"`
}

// History persists fired events and per-rule trigger times in a JSON
// file so cooldowns survive restarts. The file is read on every access;
// alert evaluation runs once per tracking run, so there is nothing to
// cache.
type History struct {
	path string
}

type historyFile struct {
	LastTriggered map[string]time.Time `json:"last_triggered"`
	Events        []Event              `json:"events"`
}

// NewHistory stores alert history under dataDir.
func NewHistory(dataDir string) *History {
	return &History{path: filepath.Join(dataDir, historyFileName)}
}

// LastTriggered returns when the rule last fired. A missing or
// unreadable history means never.
func (h *History) LastTriggered(alertID string) (time.Time, bool) {
	history := h.load()
	ts, ok := history.LastTriggered[alertID]
	return ts, ok
}

// Record appends the event and updates the rule's trigger time.
func (h *History) Record(event Event) error {
	history := h.load()
	history.Events = append(history.Events, event)
	if history.LastTriggered == nil {
		history.LastTriggered = make(map[string]time.Time)
	}
	history.LastTriggered[event.AlertID] = event.Timestamp
	return h.save(history)
}

func (h *History) load() historyFile {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return historyFile{}
	}
	var history historyFile
	if err := json.Unmarshal(data, &history); err != nil {
		return historyFile{}
	}
	return history
}

func (h *History) save(history historyFile) error {
	payload, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal alert history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(h.path, payload, 0o644); err != nil {
		return fmt.Errorf("write alert history: %w", err)
	}
	return nil
}
