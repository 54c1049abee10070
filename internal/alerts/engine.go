package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

// Notifier kinds.
const (
	NotifyLog  = "log"
	NotifyFile = "file"
)

const notificationFileName = "alerts.log"

// Notifier delivers a fired alert event.
type Notifier interface {
	Send(event Event) error
}

// LogNotifier writes fired alerts to the structured log.
type LogNotifier struct {
	logger *logger.Logger
}

func (n *LogNotifier) Send(event Event) error {
	n.logger.WithFields(map[string]interface{}{
		"alert_id":   event.AlertID,
		"alert_name": event.AlertName,
		"symbols":    event.Symbols,
	}).Info("Alert triggered")
	return nil
}

// FileNotifier appends fired alerts to alerts.log under the data
// directory, one JSON object per line.
type FileNotifier struct {
	path string
}

func (n *FileNotifier) Send(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(n.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open alert log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("append alert event: %w", err)
	}
	return nil
}

type preparedRule struct {
	Rule
	notifiers []Notifier
}

// Engine evaluates the configured alert rules against a day's
// snapshots.
type Engine struct {
	rules   []preparedRule
	history *History
	logger  *logger.Logger
	now     func() time.Time
}

// New builds an engine from already-loaded rules. Every rule is
// validated and its notifier kinds resolved here, so a bad rule fails
// construction instead of surfacing mid-run.
func New(rules []Rule, history *History, dataDir string, log *logger.Logger) (*Engine, error) {
	prepared := make([]preparedRule, 0, len(rules))
	for _, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, err
		}
		notifiers, err := resolveNotifiers(rule, dataDir, log)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, preparedRule{Rule: rule, notifiers: notifiers})
	}
	return &Engine{
		rules:   prepared,
		history: history,
		logger:  log,
		now:     time.Now,
	}, nil
}

// Load reads the alert config file and builds an engine from its
// enabled rules. A missing file, or one without enabled rules, disables
// alerting and returns a nil engine.
func Load(path, dataDir string, log *logger.Logger) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("No alert config, alerting disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("read alert config: %w", err)
	}

	var file struct {
		Alerts []Rule `json:"alerts"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse alert config %s: %w", path, err)
	}

	enabled := make([]Rule, 0, len(file.Alerts))
	for _, rule := range file.Alerts {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	if len(enabled) == 0 {
		log.WithField("path", path).Debug("No enabled alert rules")
		return nil, nil
	}

	engine, err := New(enabled, NewHistory(dataDir), dataDir, log)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"path":  path,
		"rules": len(enabled),
	}).Info("Alert rules loaded")
	return engine, nil
}

// Evaluate runs every rule against the snapshots, records fired events
// in the history and dispatches notifications. Rules inside their
// cooldown window are skipped.
func (e *Engine) Evaluate(snapshots []contracts.Snapshot) []Event {
	var events []Event
	for _, rule := range e.rules {
		if e.withinCooldown(rule.Rule) {
			e.logger.WithField("alert_id", rule.ID).Debug("Alert inside cooldown window")
			continue
		}

		symbols := matchRule(rule.Rule, snapshots)
		if len(symbols) == 0 {
			continue
		}

		name := rule.Name
		if name == "" {
			name = rule.ID
		}
		event := Event{
			AlertID:       rule.ID,
			AlertName:     name,
			Symbols:       symbols,
			ConditionType: rule.Condition.Type,
			Timestamp:     e.now().UTC(),
		}

		if err := e.history.Record(event); err != nil {
			e.logger.WithError(err).WithField("alert_id", rule.ID).Warn("Could not record alert event")
		}
		for _, notifier := range rule.notifiers {
			if err := notifier.Send(event); err != nil {
				e.logger.WithError(err).WithField("alert_id", rule.ID).Warn("Alert notification failed")
			}
		}
		events = append(events, event)
	}
	return events
}

func matchRule(rule Rule, snapshots []contracts.Snapshot) []string {
	switch rule.Condition.Type {
	case ConditionPriceThreshold:
		for _, s := range snapshots {
			if s.Symbol != rule.Condition.Symbol {
				continue
			}
			if matchesPrice(rule.Condition, s) {
				return []string{s.Symbol}
			}
			return nil
		}
		return nil
	case ConditionScreeningMatch:
		var symbols []string
		for _, s := range snapshots {
			if matchesScreening(rule.Condition, s) {
				symbols = append(symbols, s.Symbol)
			}
		}
		return symbols
	}
	return nil
}

func (e *Engine) withinCooldown(rule Rule) bool {
	if rule.CooldownMinutes <= 0 {
		return false
	}
	last, ok := e.history.LastTriggered(rule.ID)
	if !ok {
		return false
	}
	return e.now().Sub(last) < time.Duration(rule.CooldownMinutes)*time.Minute
}

func resolveNotifiers(rule Rule, dataDir string, log *logger.Logger) ([]Notifier, error) {
	kinds := rule.Notifications
	if len(kinds) == 0 {
		kinds = []string{NotifyLog}
	}
	notifiers := make([]Notifier, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case NotifyLog:
			notifiers = append(notifiers, &LogNotifier{logger: log})
		case NotifyFile:
			notifiers = append(notifiers, &FileNotifier{path: filepath.Join(dataDir, notificationFileName)})
		default:
			return nil, fmt.Errorf("alert %q: unknown notifier %q", rule.ID, kind)
		}
	}
	return notifiers, nil
}
