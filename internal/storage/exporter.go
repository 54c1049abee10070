package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

// Exporter writes the per-day file artifacts: the daily snapshot CSV,
// the projections CSV with its Markdown report, and the summary JSON.
type Exporter struct {
	dataDir string
	logger  *logger.Logger
	now     func() time.Time
}

// NewExporter creates an exporter rooted at dataDir.
func NewExporter(dataDir string, log *logger.Logger) *Exporter {
	return &Exporter{
		dataDir: dataDir,
		logger:  log,
		now:     time.Now,
	}
}

// FileDate resolves the trade date used in filenames: a zero date means
// the most recent trading day, with weekends mapping back to Friday.
func (e *Exporter) FileDate(date time.Time) time.Time {
	if !date.IsZero() {
		return contracts.DateOnly(date)
	}

	day := e.now()
	switch day.Weekday() {
	case time.Saturday:
		day = day.AddDate(0, 0, -1)
	case time.Sunday:
		day = day.AddDate(0, 0, -2)
	}
	return contracts.DateOnly(day)
}

// SaveDailyCSV writes the day's snapshots to daily_data_YYYY-MM-DD.csv
// and returns the path. Empty input writes nothing.
func (e *Exporter) SaveDailyCSV(snapshots []contracts.Snapshot, date time.Time) (string, error) {
	if len(snapshots) == 0 {
		return "", nil
	}

	path := e.path("daily_data", date, "csv")
	file, err := e.create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{
		"symbol", "name", "exchange", "index_name", "date",
		"open", "high", "low", "close", "previous_close",
		"change", "change_percent", "volume", "market_cap",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, s := range snapshots {
		record := []string{
			s.Symbol, s.Name, s.Exchange, s.IndexName, s.Date.Format("2006-01-02"),
			formatFloat(s.Open), formatFloat(s.High), formatFloat(s.Low),
			formatFloat(s.Close), formatFloat(s.PreviousClose),
			formatFloat(s.Change), formatFloat(s.ChangePercent),
			strconv.FormatInt(s.Volume, 10), formatFloat(s.MarketCap),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(snapshots),
	}).Info("Daily data exported")
	return path, nil
}

// SaveProjections writes projections_YYYY-MM-DD.csv plus the Markdown
// report next to it. A report failure is logged and does not fail the
// CSV export.
func (e *Exporter) SaveProjections(projections []contracts.Projection, date time.Time) (string, error) {
	if len(projections) == 0 {
		return "", nil
	}

	csvPath := e.path("projections", date, "csv")
	file, err := e.create(csvPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{
		"symbol", "name", "current_price", "target_low", "target_mid", "target_high",
		"expected_change_percent", "recommendation", "confidence", "trend",
		"momentum_score", "volatility_score", "risk_level", "reason",
		"projection_date", "generated_at",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range projections {
		record := []string{
			p.Symbol, p.Name,
			formatFloat(p.CurrentPrice), formatFloat(p.TargetLow),
			formatFloat(p.TargetMid), formatFloat(p.TargetHigh),
			formatFloat(p.ExpectedChangePercent),
			string(p.Recommendation), strconv.Itoa(p.Confidence), string(p.Trend),
			formatFloat(p.MomentumScore), formatFloat(p.VolatilityScore),
			string(p.RiskLevel), p.Reason,
			p.ProjectionDate.Format("2006-01-02"), p.GeneratedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	mdPath := e.path("projections", date, "md")
	report := ProjectionReport(projections, e.now())
	if err := os.WriteFile(mdPath, []byte(report), 0o644); err != nil {
		e.logger.WithError(err).WithField("path", mdPath).Warn("Could not write projection report")
	}

	e.logger.WithFields(map[string]interface{}{
		"path": csvPath,
		"rows": len(projections),
	}).Info("Projections exported")
	return csvPath, nil
}

// summaryFile is the on-disk shape of summary_YYYY-MM-DD.json: the run
// summary document stamped with its trade date.
type summaryFile struct {
	Date string `json:"date"`
	*contracts.SummaryDocument
}

// SaveSummaryJSON writes the run summary document for a trade date.
func (e *Exporter) SaveSummaryJSON(doc *contracts.SummaryDocument, date time.Time) (string, error) {
	if doc == nil {
		return "", nil
	}

	fileDate := e.FileDate(date)
	path := e.path("summary", date, "json")

	payload, err := json.MarshalIndent(summaryFile{
		Date:            fileDate.Format("2006-01-02"),
		SummaryDocument: doc,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}

	if err := os.MkdirAll(e.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	e.logger.WithField("path", path).Info("Summary exported")
	return path, nil
}

func (e *Exporter) path(prefix string, date time.Time, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", prefix, e.FileDate(date).Format("2006-01-02"), ext)
	return filepath.Join(e.dataDir, name)
}

func (e *Exporter) create(path string) (*os.File, error) {
	if err := os.MkdirAll(e.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return file, nil
}

// formatFloat renders a float the shortest way that round-trips, the
// same form the JSON encoder uses.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
