package pricefeed

import (
	"context"
	"math"
	"time"

	"github.com/rovshanmuradov/solana-sim/internal/token"
	"go.uber.org/zap"
)

const fetchTimeout = 10 * time.Second

// poller is the recurring price fetch loop for one address. Loops are
// independent: a fetch that never resolves for one address cannot stall
// another address's loop.
type poller struct {
	feed   *Feed
	mint   string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *zap.Logger
}

func newPoller(feed *Feed, mint string) *poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &poller{
		feed:   feed,
		mint:   mint,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: feed.logger.Named("poller").With(zap.String("mint", mint)),
	}
}

func (p *poller) run() {
	defer close(p.done)

	// First observation immediately, then on the ticker.
	if !p.poll() {
		p.feed.remove(p.mint, p)
		return
	}

	ticker := time.NewTicker(p.feed.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !p.poll() {
				p.feed.remove(p.mint, p)
				return
			}
		case <-p.ctx.Done():
			p.logger.Debug("Poller stopped")
			return
		}
	}
}

func (p *poller) stop() {
	p.cancel()
}

// poll fetches one price and delivers it. It returns false when the
// subscription must be torn down because the failure is permanent.
func (p *poller) poll() bool {
	ctx, cancel := context.WithTimeout(p.ctx, fetchTimeout)
	defer cancel()

	price, err := p.feed.source.FetchPrice(ctx, p.mint)

	// The loop may have been cancelled while the fetch was in flight. Bail
	// out before delivering anything so a late response cannot produce a
	// ghost update for an unsubscribed address.
	select {
	case <-p.ctx.Done():
		return true
	default:
	}

	if err != nil {
		if token.IsPermanent(err) {
			p.logger.Warn("Permanent price source failure, stopping poller", zap.Error(err))
			p.feed.listener.OnFeedError(p.mint, err)
			return false
		}
		// Transient failure: skip this tick, the next one may succeed.
		p.logger.Debug("Price fetch failed", zap.Error(err))
		return true
	}

	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		p.logger.Debug("Discarding invalid price reading", zap.Float64("price", price))
		return true
	}

	p.feed.listener.OnPrice(p.mint, price)
	return true
}
