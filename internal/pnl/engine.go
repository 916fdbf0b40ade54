// Package pnl recomputes unrealized profit and loss for open positions from
// the latest observed prices.
package pnl

import (
	"errors"
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-sim/internal/ledger"
	"go.uber.org/zap"
)

// ErrCorruptPosition is returned when a position carries a non-positive
// entry price. The ledger forbids opening such positions, so hitting this is
// a data integrity failure, not a computation edge case.
var ErrCorruptPosition = errors.New("position has non-positive entry price")

// PositionView is the computed PnL of one open position.
type PositionView struct {
	Position ledger.Position

	// Pending is set while no price has been observed for the address
	// yet. A pending position has no PnL to show; rendering it as $0.00
	// would misreport a value that was never computed.
	Pending bool

	CurrentPrice float64
	Unrealized   float64
	PctChange    float64
	ObservedAt   time.Time
}

type observation struct {
	price float64
	at    time.Time
}

// Engine caches the latest price per address and derives unrealized PnL for
// the ledger's open positions. It only ever reads positions; all mutation
// stays in the ledger.
type Engine struct {
	mu     sync.RWMutex
	prices map[string]observation

	ledger *ledger.PositionLedger
	logger *zap.Logger
}

// NewEngine creates a PnL engine reading open positions from l.
func NewEngine(l *ledger.PositionLedger, logger *zap.Logger) *Engine {
	return &Engine{
		prices: make(map[string]observation),
		ledger: l,
		logger: logger,
	}
}

// OnPrice records a price observation for an address. Observations for
// addresses without any open position are dropped so that a late in-flight
// poll cannot resurrect the display of a position closed meanwhile.
func (e *Engine) OnPrice(mint string, price float64) {
	if !e.ledger.HasOpenPosition(mint) {
		e.logger.Debug("Dropping price for address with no open position",
			zap.String("mint", mint))
		return
	}

	e.mu.Lock()
	e.prices[mint] = observation{price: price, at: time.Now()}
	e.mu.Unlock()
}

// OnFeedError is called when a price subscription dies permanently. The
// stale observation is dropped so affected positions report pending instead
// of an outdated number.
func (e *Engine) OnFeedError(mint string, err error) {
	e.logger.Warn("Price feed terminated",
		zap.String("mint", mint),
		zap.Error(err))
	e.Forget(mint)
}

// Forget drops the cached observation for an address.
func (e *Engine) Forget(mint string) {
	e.mu.Lock()
	delete(e.prices, mint)
	e.mu.Unlock()
}

// LastPrice returns the latest observed price for an address.
func (e *Engine) LastPrice(mint string) (float64, time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	obs, ok := e.prices[mint]
	return obs.price, obs.at, ok
}

// View computes the PnL of a single position against its address's latest
// cached price.
func (e *Engine) View(pos ledger.Position) (PositionView, error) {
	if pos.EntryPrice <= 0 {
		return PositionView{}, ErrCorruptPosition
	}

	view := PositionView{Position: pos}

	price, at, ok := e.LastPrice(pos.ContractAddress)
	if !ok {
		view.Pending = true
		return view, nil
	}

	view.CurrentPrice = price
	view.ObservedAt = at
	view.Unrealized = (price - pos.EntryPrice) * pos.Quantity
	view.PctChange = ((price - pos.EntryPrice) / pos.EntryPrice) * 100
	return view, nil
}

// Views computes PnL for every open position plus the aggregate unrealized
// PnL. Positions without an observation yet fall back to their entry price
// for the aggregate, contributing zero.
func (e *Engine) Views() ([]PositionView, float64) {
	positions := e.ledger.OpenPositions()

	views := make([]PositionView, 0, len(positions))
	var aggregate float64

	for _, pos := range positions {
		view, err := e.View(pos)
		if err != nil {
			e.logger.Error("Skipping corrupt position in PnL aggregation",
				zap.String("id", pos.ID),
				zap.String("mint", pos.ContractAddress),
				zap.Error(err))
			continue
		}
		views = append(views, view)
		aggregate += view.Unrealized
	}

	return views, aggregate
}
