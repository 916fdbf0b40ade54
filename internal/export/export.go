// Package export writes closed trade history to CSV or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rovshanmuradov/solana-sim/internal/format"
	"github.com/rovshanmuradov/solana-sim/internal/ledger"
	"go.uber.org/zap"
)

// Format is the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures an export run.
type Options struct {
	Format      Format
	StartTime   time.Time
	EndTime     time.Time
	TokenFilter string // filter by contract address
	OutputDir   string
}

// Exporter writes trade history files.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a trade exporter.
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export writes the trades matching the options and returns the output path.
func (e *Exporter) Export(trades []ledger.ClosedTrade, options Options) (string, error) {
	filtered := e.filter(trades, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	// Newest first, matching the history display order.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].ClosedAt.After(filtered[j].ClosedAt)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, e.filename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = e.writeCSV(filtered, outputPath)
	case FormatJSON:
		err = e.writeJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Trade history exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (e *Exporter) filter(trades []ledger.ClosedTrade, options Options) []ledger.ClosedTrade {
	var filtered []ledger.ClosedTrade
	for _, t := range trades {
		if !options.StartTime.IsZero() && t.ClosedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && t.ClosedAt.After(options.EndTime) {
			continue
		}
		if options.TokenFilter != "" && t.ContractAddress != options.TokenFilter {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

func (e *Exporter) filename(options Options) string {
	timestamp := time.Now().Format("20060102_150405")

	prefix := "trade_history"
	if options.TokenFilter != "" && len(options.TokenFilter) >= 8 {
		prefix += "_" + options.TokenFilter[:8]
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

// CSVHeaders returns the header row for trade history CSV files.
func CSVHeaders() []string {
	return []string{
		"symbol",
		"contract_address",
		"entry_date",
		"entry_time",
		"exit_date",
		"exit_time",
		"entry_price",
		"exit_price",
		"quantity",
		"investment",
		"pnl",
		"pnl_percent",
		"time_held",
	}
}

// csvRecord converts one trade to a CSV row. Prices keep full precision;
// cash amounts use two decimals.
func csvRecord(t ledger.ClosedTrade) []string {
	return []string{
		t.Symbol,
		t.ContractAddress,
		t.OpenedAt.Format("2006-01-02"),
		t.OpenedAt.Format("15:04:05"),
		t.ClosedAt.Format("2006-01-02"),
		t.ClosedAt.Format("15:04:05"),
		fmt.Sprintf("%.8f", t.EntryPrice),
		fmt.Sprintf("%.8f", t.ExitPrice),
		fmt.Sprintf("%.8f", t.Quantity),
		fmt.Sprintf("%.2f", t.Amount),
		fmt.Sprintf("%.2f", t.PnL),
		fmt.Sprintf("%.2f", t.PctChange()),
		format.HoldTime(t.OpenedAt, t.ClosedAt),
	}
}

func (e *Exporter) writeCSV(trades []ledger.ClosedTrade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, t := range trades {
		if err := writer.Write(csvRecord(t)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}

	return nil
}

func (e *Exporter) writeJSON(trades []ledger.ClosedTrade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	exportData := struct {
		ExportTime time.Time            `json:"export_time"`
		TradeCount int                  `json:"trade_count"`
		Summary    Summary              `json:"summary"`
		Trades     []ledger.ClosedTrade `json:"trades"`
	}{
		ExportTime: time.Now(),
		TradeCount: len(trades),
		Summary:    Summarize(trades),
		Trades:     trades,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// Summary contains aggregate statistics for an export.
type Summary struct {
	TotalTrades     int       `json:"total_trades"`
	UniqueTokens    int       `json:"unique_tokens"`
	TotalInvested   float64   `json:"total_invested"`
	TotalPnL        float64   `json:"total_pnl"`
	WinCount        int       `json:"win_count"`
	LossCount       int       `json:"loss_count"`
	WinRate         float64   `json:"win_rate"`
	AvgPnL          float64   `json:"avg_pnl"`
	FirstTradeClose time.Time `json:"first_trade_close"`
	LastTradeClose  time.Time `json:"last_trade_close"`
}

// Summarize computes aggregate statistics for a set of trades.
func Summarize(trades []ledger.ClosedTrade) Summary {
	summary := Summary{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return summary
	}

	tokens := make(map[string]struct{})
	summary.FirstTradeClose = trades[0].ClosedAt
	summary.LastTradeClose = trades[0].ClosedAt

	for _, t := range trades {
		tokens[t.ContractAddress] = struct{}{}
		summary.TotalInvested += t.Amount
		summary.TotalPnL += t.PnL

		if t.PnL > 0 {
			summary.WinCount++
		} else if t.PnL < 0 {
			summary.LossCount++
		}

		if t.ClosedAt.Before(summary.FirstTradeClose) {
			summary.FirstTradeClose = t.ClosedAt
		}
		if t.ClosedAt.After(summary.LastTradeClose) {
			summary.LastTradeClose = t.ClosedAt
		}
	}

	summary.UniqueTokens = len(tokens)
	summary.WinRate = float64(summary.WinCount) / float64(len(trades)) * 100
	summary.AvgPnL = summary.TotalPnL / float64(len(trades))

	return summary
}
