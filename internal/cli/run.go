package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rovshanmuradov/solana-sim/internal/config"
	"github.com/rovshanmuradov/solana-sim/internal/export"
	"github.com/rovshanmuradov/solana-sim/internal/format"
	"github.com/rovshanmuradov/solana-sim/internal/ledger"
	"github.com/rovshanmuradov/solana-sim/internal/sim"
	"github.com/rovshanmuradov/solana-sim/internal/store"
	"github.com/rovshanmuradov/solana-sim/internal/token"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive trading session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()
		return runSession(cfg, log)
	},
}

func runSession(cfg *config.Config, log *zap.Logger) error {
	kv, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer kv.Close()

	led, err := ledger.Load(ledger.Config{
		InitialBalance: cfg.InitialBalance,
		Persister:      store.NewSnapshotStore(kv),
		Logger:         log.Named("ledger"),
	})
	if err != nil {
		return err
	}

	client := token.NewClient(cfg.PriceBaseURL, cfg.MetadataBaseURL, log.Named("token"))
	simulator := sim.New(sim.Config{
		Ledger:       led,
		Prices:       client,
		Metadata:     client,
		PollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		Logger:       log,
	})

	simulator.Start()
	defer simulator.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Paper trading session started. Balance: $%.2f. Type 'help' for commands.\n", led.Balance())
	repl(ctx, cfg, simulator, log)
	fmt.Println("Session ended.")
	return nil
}

func repl(ctx context.Context, cfg *config.Config, simulator *sim.Simulator, log *zap.Logger) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := dispatch(ctx, cfg, simulator, log, line); quit {
				return
			}
		}
	}
}

func dispatch(ctx context.Context, cfg *config.Config, simulator *sim.Simulator, log *zap.Logger, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "help":
		printHelp()
	case "lookup":
		if len(fields) != 2 {
			fmt.Println("usage: lookup <mint>")
			return false
		}
		cmdLookup(ctx, simulator, fields[1])
	case "buy":
		if len(fields) != 3 {
			fmt.Println("usage: buy <mint> <amount>")
			return false
		}
		cmdBuy(ctx, simulator, fields[1], fields[2])
	case "close":
		if len(fields) != 2 {
			fmt.Println("usage: close <position-id>")
			return false
		}
		cmdClose(ctx, simulator, fields[1])
	case "positions":
		cmdPositions(simulator)
	case "history":
		page := 1
		if len(fields) == 2 {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				page = n
			}
		}
		cmdHistory(simulator, page, cfg.HistoryPageSize)
	case "balance":
		p := simulator.Portfolio()
		fmt.Printf("Balance: $%.2f  Unrealized: %s  Realized: %s\n",
			p.CashBalance, format.Pnl(p.AggregateUnrealized), format.Pnl(p.CumulativeRealizedPnl))
	case "export":
		formatName := "csv"
		if len(fields) == 2 {
			formatName = fields[1]
		}
		cmdExport(cfg, simulator, log, formatName)
	case "quit", "exit":
		return true
	default:
		fmt.Printf("unknown command %q, type 'help'\n", fields[0])
	}
	return false
}

func printHelp() {
	fmt.Println(`Commands:
  lookup <mint>          show token name, symbol and live price
  buy <mint> <amount>    open a position for <amount> dollars
  close <position-id>    close a position at the current price
  positions              list open positions with unrealized PnL
  history [page]         show closed trades, newest first
  balance                show cash balance and PnL totals
  export [csv|json]      export trade history
  quit                   end the session`)
}

func cmdLookup(ctx context.Context, simulator *sim.Simulator, mint string) {
	info, err := simulator.Lookup(ctx, mint)
	if err != nil {
		fmt.Println("lookup failed:", err)
		return
	}
	fmt.Printf("%s (%s)  $%s\n", info.Name, info.Symbol, format.Price(info.Price))
}

func cmdBuy(ctx context.Context, simulator *sim.Simulator, mint, rawAmount string) {
	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil {
		fmt.Println("invalid amount:", rawAmount)
		return
	}

	pos, err := simulator.Buy(ctx, mint, amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			fmt.Println("insufficient balance")
		case errors.Is(err, ledger.ErrInvalidQuote):
			fmt.Println("cannot buy at a non-positive price")
		default:
			fmt.Println("buy failed:", err)
		}
		return
	}

	fmt.Printf("Opened %s: %.4f %s @ $%s (id %s)\n",
		pos.Symbol, pos.Quantity, pos.Symbol, format.Price(pos.EntryPrice), pos.ID)
}

func cmdClose(ctx context.Context, simulator *sim.Simulator, id string) {
	summary, err := simulator.ClosePosition(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidPosition) {
			fmt.Println("position not found (already closed?)")
		} else {
			fmt.Println("close failed:", err)
		}
		return
	}

	t := summary.Trade
	fmt.Printf("Closed %s: %s (%+.2f%%)  $%s -> $%s  held %s\n",
		t.Symbol, format.Pnl(t.PnL), summary.PctChange,
		format.Price(t.EntryPrice), format.Price(t.ExitPrice), summary.HoldTime)
}

func cmdPositions(simulator *sim.Simulator) {
	p := simulator.Portfolio()
	if len(p.Positions) == 0 {
		fmt.Println("no open positions")
		return
	}

	for _, v := range p.Positions {
		pos := v.Position
		if v.Pending {
			fmt.Printf("%-12s %s  qty %.4f  entry $%s  invested $%.2f  PnL: waiting for price...\n",
				pos.ID, pos.Symbol, pos.Quantity, format.Price(pos.EntryPrice), pos.Amount)
			continue
		}
		fmt.Printf("%-12s %s  qty %.4f  entry $%s  now $%s  PnL %s (%+.2f%%)\n",
			pos.ID, pos.Symbol, pos.Quantity, format.Price(pos.EntryPrice),
			format.Price(v.CurrentPrice), format.Pnl(v.Unrealized), v.PctChange)
	}
	fmt.Printf("Aggregate unrealized: %s\n", format.Pnl(p.AggregateUnrealized))
}

func cmdHistory(simulator *sim.Simulator, page, pageSize int) {
	history := simulator.Ledger().History()
	trades := history.Page(page, pageSize)
	if len(trades) == 0 {
		fmt.Println("no trade history yet")
		return
	}

	total := history.TotalPages(pageSize)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	for _, t := range trades {
		fmt.Printf("%s  %s  %s  $%s -> $%s  closed %s\n",
			t.ID, t.Symbol, format.Pnl(t.PnL),
			format.Price(t.EntryPrice), format.Price(t.ExitPrice),
			t.ClosedAt.Local().Format("2006-01-02 15:04:05"))
	}

	stats := history.Stats()
	fmt.Printf("Page %d of %d  |  %d trades, total PnL %s, win rate %.1f%%\n",
		page, total, stats.TotalTrades, format.Pnl(stats.TotalPnL), stats.WinRate)
}

func cmdExport(cfg *config.Config, simulator *sim.Simulator, log *zap.Logger, formatName string) {
	exporter := export.NewExporter(log.Named("export"))
	path, err := exporter.Export(simulator.Ledger().History().All(), export.Options{
		Format:    export.Format(formatName),
		OutputDir: cfg.ExportDir,
	})
	if err != nil {
		fmt.Println("export failed:", err)
		return
	}
	fmt.Println("exported to", path)
}
