// Package sim wires the token sources, price feed, ledger and PnL engine
// into the paper-trading simulator.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rovshanmuradov/solana-sim/internal/format"
	"github.com/rovshanmuradov/solana-sim/internal/ledger"
	"github.com/rovshanmuradov/solana-sim/internal/pnl"
	"github.com/rovshanmuradov/solana-sim/internal/pricefeed"
	"github.com/rovshanmuradov/solana-sim/internal/token"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const lookupMaxTries = 3

// Config configures a Simulator.
type Config struct {
	Ledger       *ledger.PositionLedger
	Prices       token.PriceSource
	Metadata     token.MetadataSource
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Simulator owns the running state of the paper-trading session: the ledger,
// the per-address price pollers and the PnL engine fed by them.
type Simulator struct {
	ledger *ledger.PositionLedger
	engine *pnl.Engine
	feed   *pricefeed.Feed

	prices   token.PriceSource
	metadata token.MetadataSource
	logger   *zap.Logger
}

// New creates a simulator. Call Start to begin polling prices for any
// positions restored from a previous session.
func New(cfg Config) *Simulator {
	s := &Simulator{
		ledger:   cfg.Ledger,
		prices:   cfg.Prices,
		metadata: cfg.Metadata,
		logger:   cfg.Logger,
	}
	s.engine = pnl.NewEngine(cfg.Ledger, cfg.Logger.Named("pnl"))
	s.feed = pricefeed.New(cfg.Prices, s.engine, cfg.PollInterval, cfg.Logger.Named("feed"))
	return s
}

// Start resubscribes the price feed for every open position, so a reloaded
// session resumes unrealized PnL tracking. Subscribe de-duplicates, so
// several positions on the same token share one poller.
func (s *Simulator) Start() {
	for _, pos := range s.ledger.OpenPositions() {
		s.feed.Subscribe(pos.ContractAddress)
	}
}

// Shutdown stops all price polling.
func (s *Simulator) Shutdown() {
	s.feed.Shutdown()
}

// Ledger exposes the position ledger.
func (s *Simulator) Ledger() *ledger.PositionLedger {
	return s.ledger
}

// Engine exposes the PnL engine.
func (s *Simulator) Engine() *pnl.Engine {
	return s.engine
}

// Feed exposes the price feed.
func (s *Simulator) Feed() *pricefeed.Feed {
	return s.feed
}

// TokenInfo is the result of a token lookup.
type TokenInfo struct {
	Mint     string
	Name     string
	Symbol   string
	ImageRef string
	Price    float64
}

// Lookup validates the mint, fetches metadata and price concurrently and
// starts watching the token's price. Transient fetch failures are retried
// with exponential backoff; an unknown token fails immediately.
func (s *Simulator) Lookup(ctx context.Context, mint string) (*TokenInfo, error) {
	if err := token.ValidateMint(mint); err != nil {
		return nil, err
	}

	operation := func() (*TokenInfo, error) {
		info, err := s.fetchTokenInfo(ctx, mint)
		if err != nil && token.IsPermanent(err) {
			return nil, backoff.Permanent(err)
		}
		return info, err
	}

	notify := func(err error, wait time.Duration) {
		s.logger.Debug("Retrying token lookup",
			zap.String("mint", mint),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	info, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(lookupMaxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", mint, err)
	}

	s.feed.Subscribe(mint)

	s.logger.Info("Token resolved",
		zap.String("mint", mint),
		zap.String("symbol", info.Symbol),
		zap.String("price", format.Price(info.Price)))

	return info, nil
}

// fetchTokenInfo fetches metadata and price in parallel.
func (s *Simulator) fetchTokenInfo(ctx context.Context, mint string) (*TokenInfo, error) {
	var (
		meta  *token.Metadata
		price float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = s.metadata.FetchMetadata(gctx, mint)
		return err
	})
	g.Go(func() error {
		var err error
		price, err = s.prices.FetchPrice(gctx, mint)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &TokenInfo{
		Mint:     mint,
		Name:     meta.Name,
		Symbol:   meta.Symbol,
		ImageRef: meta.LogoURI,
		Price:    price,
	}, nil
}

// Buy opens a position for cashAmount at a freshly fetched price. The
// balance check happens inside the ledger after the fetch returns, so a
// balance change during the fetch cannot be missed.
func (s *Simulator) Buy(ctx context.Context, mint string, cashAmount float64) (ledger.Position, error) {
	if err := token.ValidateMint(mint); err != nil {
		return ledger.Position{}, err
	}

	info, err := s.fetchTokenInfo(ctx, mint)
	if err != nil {
		return ledger.Position{}, fmt.Errorf("fetch quote for %s: %w", mint, err)
	}

	pos, err := s.ledger.Open(mint, cashAmount, ledger.Quote{
		Price:    info.Price,
		Symbol:   info.Symbol,
		ImageRef: info.ImageRef,
	})
	if err != nil {
		return ledger.Position{}, err
	}

	s.feed.Subscribe(mint)
	return pos, nil
}

// CloseSummary is what a close produces for display: the trade itself plus
// the derived presentation values.
type CloseSummary struct {
	Trade     ledger.ClosedTrade
	PctChange float64
	HoldTime  string
}

// ClosePosition closes the referenced position at a freshly fetched price.
// The position is re-validated inside the ledger after the fetch, so a
// double-close from a stale reference fails cleanly. When the last position
// for an address is gone, its price poller is stopped and the cached price
// dropped, guaranteeing no further PnL updates for it.
func (s *Simulator) ClosePosition(ctx context.Context, positionID string) (*CloseSummary, error) {
	pos, ok := s.ledger.Position(positionID)
	if !ok {
		return nil, ledger.ErrInvalidPosition
	}

	exitPrice, err := s.prices.FetchPrice(ctx, pos.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("fetch exit price for %s: %w", pos.ContractAddress, err)
	}

	trade, err := s.ledger.Close(positionID, exitPrice)
	if err != nil {
		return nil, err
	}

	if !s.ledger.HasOpenPosition(trade.ContractAddress) {
		s.feed.Unsubscribe(trade.ContractAddress)
		s.engine.Forget(trade.ContractAddress)
	}

	return &CloseSummary{
		Trade:     trade,
		PctChange: trade.PctChange(),
		HoldTime:  format.HoldTime(trade.OpenedAt, trade.ClosedAt),
	}, nil
}

// Portfolio is the current state of the session for display.
type Portfolio struct {
	CashBalance           float64
	Positions             []pnl.PositionView
	AggregateUnrealized   float64
	CumulativeRealizedPnl float64
}

// Portfolio returns balance, per-position PnL views and aggregates.
func (s *Simulator) Portfolio() Portfolio {
	views, aggregate := s.engine.Views()
	return Portfolio{
		CashBalance:           s.ledger.Balance(),
		Positions:             views,
		AggregateUnrealized:   aggregate,
		CumulativeRealizedPnl: s.ledger.CumulativeRealizedPnl(),
	}
}
