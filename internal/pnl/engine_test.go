package pnl

import (
	"errors"
	"testing"

	"github.com/rovshanmuradov/solana-sim/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopPersister struct{}

func (nopPersister) SaveSnapshot(ledger.Snapshot) error          { return nil }
func (nopPersister) LoadSnapshot() (ledger.Snapshot, bool, error) { return ledger.Snapshot{}, false, nil }

func newTestEngine(t *testing.T, balance float64) (*Engine, *ledger.PositionLedger) {
	t.Helper()
	l := ledger.New(ledger.Config{
		InitialBalance: balance,
		Persister:      nopPersister{},
		Logger:         zap.NewNop(),
	})
	return NewEngine(l, zap.NewNop()), l
}

func TestViewPendingBeforeFirstObservation(t *testing.T) {
	e, l := newTestEngine(t, 100)

	pos, err := l.Open("mintA", 50, ledger.Quote{Price: 2})
	require.NoError(t, err)

	view, err := e.View(pos)
	require.NoError(t, err)
	assert.True(t, view.Pending)
	assert.Zero(t, view.Unrealized)
	assert.Zero(t, view.CurrentPrice)
}

func TestViewComputesUnrealized(t *testing.T) {
	e, l := newTestEngine(t, 100)

	pos, err := l.Open("mintA", 50, ledger.Quote{Price: 2})
	require.NoError(t, err)

	e.OnPrice("mintA", 3)

	view, err := e.View(pos)
	require.NoError(t, err)
	assert.False(t, view.Pending)
	assert.InDelta(t, 3.0, view.CurrentPrice, 1e-9)
	assert.InDelta(t, 25.0, view.Unrealized, 1e-9) // (3-2)*25
	assert.InDelta(t, 50.0, view.PctChange, 1e-9)
	assert.False(t, view.ObservedAt.IsZero())
}

func TestViewNegativeUnrealized(t *testing.T) {
	e, l := newTestEngine(t, 100)

	pos, err := l.Open("mintA", 50, ledger.Quote{Price: 2})
	require.NoError(t, err)

	e.OnPrice("mintA", 0.5)

	view, err := e.View(pos)
	require.NoError(t, err)
	assert.InDelta(t, -37.5, view.Unrealized, 1e-9)
	assert.InDelta(t, -75.0, view.PctChange, 1e-9)
}

func TestViewCorruptPosition(t *testing.T) {
	e, _ := newTestEngine(t, 100)

	_, err := e.View(ledger.Position{ID: "bad", EntryPrice: 0, Quantity: 10})
	assert.ErrorIs(t, err, ErrCorruptPosition)
}

func TestOnPriceDroppedWithoutOpenPosition(t *testing.T) {
	e, l := newTestEngine(t, 100)

	pos, err := l.Open("mintA", 50, ledger.Quote{Price: 2})
	require.NoError(t, err)
	_, err = l.Close(pos.ID, 3)
	require.NoError(t, err)

	// A poll that was in flight during the close delivers late. It must
	// not leave a cached price behind for the closed position's address.
	e.OnPrice("mintA", 99)

	_, _, ok := e.LastPrice("mintA")
	assert.False(t, ok)
}

func TestOnFeedErrorDropsObservation(t *testing.T) {
	e, l := newTestEngine(t, 100)

	pos, err := l.Open("mintA", 50, ledger.Quote{Price: 2})
	require.NoError(t, err)

	e.OnPrice("mintA", 3)
	e.OnFeedError("mintA", errors.New("token delisted"))

	view, err := e.View(pos)
	require.NoError(t, err)
	assert.True(t, view.Pending, "stale price must not survive a dead feed")
}

func TestViewsAggregate(t *testing.T) {
	e, l := newTestEngine(t, 200)

	_, err := l.Open("mintA", 50, ledger.Quote{Price: 2}) // qty 25
	require.NoError(t, err)
	_, err = l.Open("mintB", 100, ledger.Quote{Price: 10}) // qty 10
	require.NoError(t, err)
	_, err = l.Open("mintC", 20, ledger.Quote{Price: 1}) // stays pending
	require.NoError(t, err)

	e.OnPrice("mintA", 4)  // +50
	e.OnPrice("mintB", 9)  // -10

	views, aggregate := e.Views()
	require.Len(t, views, 3)
	assert.InDelta(t, 40.0, aggregate, 1e-9, "pending position contributes zero")

	var pending int
	for _, v := range views {
		if v.Pending {
			pending++
			assert.Equal(t, "mintC", v.Position.ContractAddress)
		}
	}
	assert.Equal(t, 1, pending)
}

func TestSharedAddressViewsUseSameObservation(t *testing.T) {
	e, l := newTestEngine(t, 100)

	a, err := l.Open("mintA", 30, ledger.Quote{Price: 1}) // qty 30
	require.NoError(t, err)
	b, err := l.Open("mintA", 30, ledger.Quote{Price: 2}) // qty 15
	require.NoError(t, err)

	e.OnPrice("mintA", 3)

	va, err := e.View(a)
	require.NoError(t, err)
	vb, err := e.View(b)
	require.NoError(t, err)

	assert.InDelta(t, 60.0, va.Unrealized, 1e-9)
	assert.InDelta(t, 15.0, vb.Unrealized, 1e-9)

	_, aggregate := e.Views()
	assert.InDelta(t, 75.0, aggregate, 1e-9)
}

func TestForget(t *testing.T) {
	e, l := newTestEngine(t, 100)

	_, err := l.Open("mintA", 50, ledger.Quote{Price: 2})
	require.NoError(t, err)

	e.OnPrice("mintA", 3)
	e.Forget("mintA")

	_, _, ok := e.LastPrice("mintA")
	assert.False(t, ok)
}
