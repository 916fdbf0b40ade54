package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-sim/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSource replays a fixed sequence of price results per address,
// repeating the last entry once the script runs out.
type scriptedSource struct {
	mu      sync.Mutex
	scripts map[string][]result
	calls   map[string]int
}

type result struct {
	price float64
	err   error
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{
		scripts: make(map[string][]result),
		calls:   make(map[string]int),
	}
}

func (s *scriptedSource) script(mint string, results ...result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[mint] = results
}

func (s *scriptedSource) callCount(mint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[mint]
}

func (s *scriptedSource) FetchPrice(ctx context.Context, mint string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	script := s.scripts[mint]
	i := s.calls[mint]
	s.calls[mint]++

	if len(script) == 0 {
		return 0, fmt.Errorf("no script for %s", mint)
	}
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i].price, script[i].err
}

// recorder collects listener callbacks for assertions.
type recorder struct {
	mu     sync.Mutex
	prices map[string][]float64
	errs   map[string][]error
}

func newRecorder() *recorder {
	return &recorder{
		prices: make(map[string][]float64),
		errs:   make(map[string][]error),
	}
}

func (r *recorder) OnPrice(mint string, price float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices[mint] = append(r.prices[mint], price)
}

func (r *recorder) OnFeedError(mint string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[mint] = append(r.errs[mint], err)
}

func (r *recorder) priceCount(mint string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prices[mint])
}

func (r *recorder) lastPrice(mint string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.prices[mint]
	if len(ps) == 0 {
		return 0, false
	}
	return ps[len(ps)-1], true
}

func (r *recorder) errCount(mint string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs[mint])
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func newTestFeed(source token.PriceSource, listener Listener) *Feed {
	return New(source, listener, 10*time.Millisecond, zap.NewNop())
}

func TestSubscribeDeliversFirstPriceImmediately(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA", result{price: 1.5})
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	waitFor(t, func() bool { return rec.priceCount("mintA") >= 1 }, "no price delivered")

	price, ok := rec.lastPrice("mintA")
	require.True(t, ok)
	assert.InDelta(t, 1.5, price, 1e-9)
	assert.True(t, feed.Active("mintA"))
}

func TestSubscribeTwiceKeepsOnePoller(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA", result{price: 2})
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	feed.Subscribe("mintA")

	waitFor(t, func() bool { return rec.priceCount("mintA") >= 3 }, "polling stalled")

	// With a duplicate poller the fetch count would run roughly twice as
	// fast as the deliveries. One fetch may be in flight at unsubscribe
	// and get dropped, so allow a difference of one.
	feed.Unsubscribe("mintA")
	calls, delivered := source.callCount("mintA"), rec.priceCount("mintA")
	assert.GreaterOrEqual(t, delivered, calls-1)
	assert.LessOrEqual(t, delivered, calls)
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA", result{price: 2})
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	waitFor(t, func() bool { return rec.priceCount("mintA") >= 1 }, "no price delivered")

	feed.Unsubscribe("mintA")
	assert.False(t, feed.Active("mintA"))

	// No callback may arrive after Unsubscribe returns.
	after := rec.priceCount("mintA")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, rec.priceCount("mintA"))
}

func TestUnsubscribeIdempotent(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA", result{price: 2})

	feed := newTestFeed(source, newRecorder())
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	feed.Unsubscribe("mintA")
	feed.Unsubscribe("mintA")
	feed.Unsubscribe("mintB")
}

func TestPermanentFailureTearsDownOnce(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA",
		result{price: 3},
		result{err: fmt.Errorf("price lookup: %w", token.ErrTokenNotFound)},
	)
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	waitFor(t, func() bool { return rec.errCount("mintA") >= 1 }, "feed error never surfaced")
	waitFor(t, func() bool { return !feed.Active("mintA") }, "poller still active after permanent failure")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.errCount("mintA"), "permanent failure must surface exactly once")
	assert.True(t, errors.Is(rec.errs["mintA"][0], token.ErrTokenNotFound))

	// The address can be watched again after teardown.
	source.script("mintA", result{price: 4})
	feed.Subscribe("mintA")
	assert.True(t, feed.Active("mintA"))
}

func TestTransientFailureKeepsPolling(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA",
		result{err: errors.New("connection reset")},
		result{err: errors.New("timeout")},
		result{price: 7},
	)
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	waitFor(t, func() bool { return rec.priceCount("mintA") >= 1 }, "never recovered from transient errors")

	price, _ := rec.lastPrice("mintA")
	assert.InDelta(t, 7.0, price, 1e-9)
	assert.Zero(t, rec.errCount("mintA"), "transient failures must not reach the listener")
}

func TestInvalidReadingsDiscarded(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA",
		result{price: math.NaN()},
		result{price: math.Inf(1)},
		result{price: -1},
		result{price: 0.5},
	)
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	waitFor(t, func() bool { return rec.priceCount("mintA") >= 1 }, "valid price never delivered")

	price, _ := rec.lastPrice("mintA")
	assert.InDelta(t, 0.5, price, 1e-9)

	rec.mu.Lock()
	for _, p := range rec.prices["mintA"] {
		assert.False(t, math.IsNaN(p) || math.IsInf(p, 0) || p < 0)
	}
	rec.mu.Unlock()
}

func TestZeroPriceIsDelivered(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA", result{price: 0})
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	waitFor(t, func() bool { return rec.priceCount("mintA") >= 1 }, "zero price not delivered")

	price, _ := rec.lastPrice("mintA")
	assert.Zero(t, price)
}

func TestIndependentPollersPerAddress(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA", result{price: 1})
	source.script("mintB", result{price: 2})
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	defer feed.Shutdown()

	feed.Subscribe("mintA")
	feed.Subscribe("mintB")
	waitFor(t, func() bool {
		return rec.priceCount("mintA") >= 1 && rec.priceCount("mintB") >= 1
	}, "both addresses should deliver")

	feed.Unsubscribe("mintA")
	assert.False(t, feed.Active("mintA"))
	assert.True(t, feed.Active("mintB"))
}

func TestShutdownStopsEverything(t *testing.T) {
	source := newScriptedSource()
	source.script("mintA", result{price: 1})
	source.script("mintB", result{price: 2})
	rec := newRecorder()

	feed := newTestFeed(source, rec)
	feed.Subscribe("mintA")
	feed.Subscribe("mintB")
	waitFor(t, func() bool {
		return rec.priceCount("mintA") >= 1 && rec.priceCount("mintB") >= 1
	}, "both addresses should deliver")

	feed.Shutdown()
	assert.False(t, feed.Active("mintA"))
	assert.False(t, feed.Active("mintB"))

	a, b := rec.priceCount("mintA"), rec.priceCount("mintB")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, a, rec.priceCount("mintA"))
	assert.Equal(t, b, rec.priceCount("mintB"))
}
