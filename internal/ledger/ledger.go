package ledger

import (
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// PositionLedger owns the cash balance and the set of open positions. Every
// mutation of simulator state funnels through Open and Close; price polling
// and PnL computation only ever read from it. Each mutating operation writes
// a snapshot through the configured Persister.
type PositionLedger struct {
	mu        sync.RWMutex
	balance   float64
	positions []Position
	history   *History
	realized  float64

	persister Persister
	logger    *zap.Logger
}

// Config configures a PositionLedger.
type Config struct {
	InitialBalance float64
	Persister      Persister
	Logger         *zap.Logger
}

// New creates a ledger with a fresh state and no trade history.
func New(cfg Config) *PositionLedger {
	return &PositionLedger{
		balance:   cfg.InitialBalance,
		history:   NewHistory(),
		persister: cfg.Persister,
		logger:    cfg.Logger,
	}
}

// Load restores a ledger from the persister, falling back to a fresh state
// when no snapshot has been written yet.
func Load(cfg Config) (*PositionLedger, error) {
	l := New(cfg)

	snap, ok, err := cfg.Persister.LoadSnapshot()
	if err != nil {
		return nil, err
	}
	if !ok {
		cfg.Logger.Info("No saved state found, starting fresh",
			zap.Float64("balance", cfg.InitialBalance))
		return l, nil
	}

	l.balance = snap.CashBalance
	l.positions = append(l.positions, snap.OpenPositions...)
	l.realized = snap.CumulativeRealizedPnl
	for _, t := range snap.ClosedTrades {
		l.history.Append(t)
	}

	cfg.Logger.Info("Ledger state restored",
		zap.Float64("balance", l.balance),
		zap.Int("open_positions", len(l.positions)),
		zap.Int("closed_trades", l.history.Len()))

	return l, nil
}

// Open debits cashAmount from the balance and records a new position bought
// at the quoted price. It fails without side effects when the amount is
// invalid, the quote price is not positive, or the balance is insufficient.
//
// Callers fetch the quote before calling Open, so the balance check here runs
// after the network suspend point and cannot be stale.
func (l *PositionLedger) Open(mint string, cashAmount float64, q Quote) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cashAmount <= 0 || math.IsNaN(cashAmount) || math.IsInf(cashAmount, 0) {
		return Position{}, ErrInvalidAmount
	}
	if q.Price <= 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return Position{}, ErrInvalidQuote
	}
	if cashAmount > l.balance {
		return Position{}, ErrInsufficientBalance
	}

	pos := Position{
		ID:              ulid.Make().String(),
		ContractAddress: mint,
		Symbol:          q.Symbol,
		EntryPrice:      q.Price,
		Quantity:        cashAmount / q.Price,
		Amount:          cashAmount,
		OpenedAt:        time.Now().UTC(),
		ImageRef:        q.ImageRef,
	}

	l.balance -= cashAmount
	l.positions = append(l.positions, pos)
	l.persistLocked()

	l.logger.Info("Position opened",
		zap.String("id", pos.ID),
		zap.String("mint", mint),
		zap.String("symbol", pos.Symbol),
		zap.Float64("amount", cashAmount),
		zap.Float64("entry_price", q.Price),
		zap.Float64("quantity", pos.Quantity),
		zap.Float64("balance", l.balance))

	return pos, nil
}

// Close realizes the PnL of the referenced position at exitPrice and removes
// it from the open set. The balance is credited with the original principal
// plus the realized PnL. Closing an unknown or already closed position fails
// with ErrInvalidPosition and leaves the state untouched, which guards
// against double-close from a stale reference held across a price fetch.
func (l *PositionLedger) Close(positionID string, exitPrice float64) (ClosedTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if exitPrice < 0 || math.IsNaN(exitPrice) || math.IsInf(exitPrice, 0) {
		return ClosedTrade{}, ErrInvalidPrice
	}

	idx := -1
	for i := range l.positions {
		if l.positions[i].ID == positionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ClosedTrade{}, ErrInvalidPosition
	}

	pos := l.positions[idx]
	trade := ClosedTrade{
		Position:  pos,
		ExitPrice: exitPrice,
		PnL:       (exitPrice - pos.EntryPrice) * pos.Quantity,
		ClosedAt:  time.Now().UTC(),
	}

	l.balance += pos.Amount + trade.PnL
	l.realized += trade.PnL
	l.positions = append(l.positions[:idx], l.positions[idx+1:]...)
	l.history.Append(trade)
	l.persistLocked()

	l.logger.Info("Position closed",
		zap.String("id", pos.ID),
		zap.String("mint", pos.ContractAddress),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", trade.PnL),
		zap.Float64("balance", l.balance),
		zap.Float64("realized_total", l.realized))

	return trade, nil
}

// Balance returns the current cash balance.
func (l *PositionLedger) Balance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

// CumulativeRealizedPnl returns the sum of PnL over all closed trades.
func (l *PositionLedger) CumulativeRealizedPnl() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realized
}

// OpenPositions returns a copy of the open positions in insertion order.
func (l *PositionLedger) OpenPositions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// Position looks up an open position by ID.
func (l *PositionLedger) Position(id string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.positions {
		if l.positions[i].ID == id {
			return l.positions[i], true
		}
	}
	return Position{}, false
}

// HasOpenPosition reports whether any open position references the mint.
// Close callers use it to decide whether the price feed for that address is
// still needed.
func (l *PositionLedger) HasOpenPosition(mint string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.positions {
		if l.positions[i].ContractAddress == mint {
			return true
		}
	}
	return false
}

// History returns the closed trade history.
func (l *PositionLedger) History() *History {
	return l.history
}

// Snapshot returns a copy of the full ledger state.
func (l *PositionLedger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *PositionLedger) snapshotLocked() Snapshot {
	positions := make([]Position, len(l.positions))
	copy(positions, l.positions)

	return Snapshot{
		CashBalance:           l.balance,
		OpenPositions:         positions,
		ClosedTrades:          l.history.All(),
		CumulativeRealizedPnl: l.realized,
	}
}

// persistLocked writes the current state through the persister. A persistence
// failure is reported but does not roll back the in-memory mutation: the
// operation already succeeded logically, the durable copy is simply behind.
func (l *PositionLedger) persistLocked() {
	if l.persister == nil {
		return
	}
	if err := l.persister.SaveSnapshot(l.snapshotLocked()); err != nil {
		l.logger.Error("Failed to persist ledger state, in-memory state kept",
			zap.Error(err))
	}
}
