// Package pricefeed polls an external price source for a set of watched
// token addresses. It guarantees at most one polling loop per address and
// that no listener callback for an address fires after Unsubscribe returns.
package pricefeed

import (
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-sim/internal/token"
	"go.uber.org/zap"
)

// DefaultInterval is the poll period between price fetches per address.
const DefaultInterval = 3 * time.Second

// Listener receives price observations and feed failures. Callbacks run on
// the poller goroutine of the address they belong to.
type Listener interface {
	// OnPrice delivers a validated price observation. Zero is a valid
	// price; negative and non-finite readings are discarded before this
	// point.
	OnPrice(mint string, price float64)

	// OnFeedError is called once when a subscription is torn down because
	// of a permanent upstream failure. Transient fetch errors never reach
	// the listener.
	OnFeedError(mint string, err error)
}

// Feed manages one polling loop per subscribed address.
type Feed struct {
	source   token.PriceSource
	listener Listener
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pollers map[string]*poller
}

// New creates a price feed. A non-positive interval falls back to
// DefaultInterval.
func New(source token.PriceSource, listener Listener, interval time.Duration, logger *zap.Logger) *Feed {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Feed{
		source:   source,
		listener: listener,
		interval: interval,
		logger:   logger,
		pollers:  make(map[string]*poller),
	}
}

// Subscribe starts a polling loop for the address. Subscribing an address
// that already has an active loop is a no-op, so concurrent buys of the same
// token never duplicate pollers.
func (f *Feed) Subscribe(mint string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.pollers[mint]; exists {
		f.logger.Debug("Poller already active", zap.String("mint", mint))
		return
	}

	p := newPoller(f, mint)
	f.pollers[mint] = p
	go p.run()

	f.logger.Info("Price polling started",
		zap.String("mint", mint),
		zap.Duration("interval", f.interval))
}

// Unsubscribe stops the polling loop for the address and waits for it to
// exit, so no callback for the address fires after this returns. It is a
// no-op when no loop is active.
func (f *Feed) Unsubscribe(mint string) {
	f.mu.Lock()
	p, exists := f.pollers[mint]
	if exists {
		delete(f.pollers, mint)
	}
	f.mu.Unlock()

	if !exists {
		return
	}

	p.stop()
	<-p.done

	f.logger.Info("Price polling stopped", zap.String("mint", mint))
}

// Active reports whether a polling loop is running for the address.
func (f *Feed) Active(mint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.pollers[mint]
	return exists
}

// Shutdown stops all polling loops and waits for them to exit.
func (f *Feed) Shutdown() {
	f.mu.Lock()
	pollers := f.pollers
	f.pollers = make(map[string]*poller)
	f.mu.Unlock()

	for _, p := range pollers {
		p.stop()
	}
	for _, p := range pollers {
		<-p.done
	}

	f.logger.Info("Price feed shut down", zap.Int("stopped", len(pollers)))
}

// remove drops a poller that tore itself down, unless it was already replaced
// or removed by Unsubscribe.
func (f *Feed) remove(mint string, p *poller) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if current, exists := f.pollers[mint]; exists && current == p {
		delete(f.pollers, mint)
	}
}
