// Package maintenance holds destructive utilities that operate directly on
// persisted snapshots, outside the live ledger's transactional surface. The
// ledger reloads cleanly after any of them runs.
package maintenance

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/solana-sim/internal/ledger"
	"github.com/rovshanmuradov/solana-sim/internal/store"
	"go.uber.org/zap"
)

// ErrNoTradesForToken is returned when a per-token reset matches nothing.
var ErrNoTradesForToken = errors.New("no trades recorded for token")

// Manager applies maintenance operations to a snapshot store.
type Manager struct {
	snapshots      *store.SnapshotStore
	initialBalance float64
	logger         *zap.Logger
}

// NewManager creates a maintenance manager. initialBalance is the balance a
// full reset restores.
func NewManager(kv store.KV, initialBalance float64, logger *zap.Logger) *Manager {
	return &Manager{
		snapshots:      store.NewSnapshotStore(kv),
		initialBalance: initialBalance,
		logger:         logger,
	}
}

// ResetToInitial wipes all positions and history and restores the initial
// cash balance.
func (m *Manager) ResetToInitial() error {
	snap := ledger.Snapshot{
		CashBalance:   m.initialBalance,
		OpenPositions: []ledger.Position{},
		ClosedTrades:  []ledger.ClosedTrade{},
	}

	if err := m.snapshots.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}

	m.logger.Info("State reset to initial",
		zap.Float64("balance", m.initialBalance))
	return nil
}

// DeleteTradesForToken removes every open position and closed trade for the
// mint and backs the realized PnL of the deleted trades out of the balance,
// as if those trades had never happened.
func (m *Manager) DeleteTradesForToken(mint string) error {
	return m.removeToken(mint, true)
}

// ResetTokenBalance removes every open position and closed trade for the
// mint but leaves the cash balance untouched.
func (m *Manager) ResetTokenBalance(mint string) error {
	return m.removeToken(mint, false)
}

func (m *Manager) removeToken(mint string, adjustBalance bool) error {
	snap, ok, err := m.snapshots.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return ErrNoTradesForToken
	}

	var removedPnl float64
	matched := false

	trades := snap.ClosedTrades[:0]
	for _, t := range snap.ClosedTrades {
		if t.ContractAddress == mint {
			matched = true
			removedPnl += t.PnL
			continue
		}
		trades = append(trades, t)
	}
	snap.ClosedTrades = trades

	positions := snap.OpenPositions[:0]
	for _, p := range snap.OpenPositions {
		if p.ContractAddress == mint {
			continue
		}
		positions = append(positions, p)
	}
	snap.OpenPositions = positions

	if !matched {
		return fmt.Errorf("%w: %s", ErrNoTradesForToken, mint)
	}

	if adjustBalance {
		snap.CashBalance -= removedPnl
	}

	// Cumulative realized PnL must reconcile with the surviving trades.
	snap.CumulativeRealizedPnl = 0
	for _, t := range snap.ClosedTrades {
		snap.CumulativeRealizedPnl += t.PnL
	}

	if err := m.snapshots.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	m.logger.Info("Token records removed",
		zap.String("mint", mint),
		zap.Float64("removed_pnl", removedPnl),
		zap.Bool("balance_adjusted", adjustBalance),
		zap.Float64("balance", snap.CashBalance))
	return nil
}
