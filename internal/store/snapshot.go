package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rovshanmuradov/solana-sim/internal/ledger"
)

// SnapshotStore persists ledger snapshots as four logical keys in a KV. It
// implements ledger.Persister.
type SnapshotStore struct {
	kv KV
}

// NewSnapshotStore wraps a KV as a ledger persister.
func NewSnapshotStore(kv KV) *SnapshotStore {
	return &SnapshotStore{kv: kv}
}

// SaveSnapshot overwrites all snapshot keys with the given state. The keys
// are written as a group; the first failure aborts the remaining writes.
func (s *SnapshotStore) SaveSnapshot(snap ledger.Snapshot) error {
	positions, err := json.Marshal(snap.OpenPositions)
	if err != nil {
		return fmt.Errorf("encode open positions: %w", err)
	}
	trades, err := json.Marshal(snap.ClosedTrades)
	if err != nil {
		return fmt.Errorf("encode closed trades: %w", err)
	}

	writes := []struct {
		key   string
		value string
	}{
		{KeyBalance, strconv.FormatFloat(snap.CashBalance, 'g', -1, 64)},
		{KeyOpenPositions, string(positions)},
		{KeyClosedTrades, string(trades)},
		{KeyCumulativeRealizedPnl, strconv.FormatFloat(snap.CumulativeRealizedPnl, 'g', -1, 64)},
	}

	for _, w := range writes {
		if err := s.kv.Set(w.key, w.value); err != nil {
			return fmt.Errorf("persist %s: %w", w.key, err)
		}
	}
	return nil
}

// LoadSnapshot reads the saved state. The second result is false when no
// snapshot has been written yet.
func (s *SnapshotStore) LoadSnapshot() (ledger.Snapshot, bool, error) {
	var snap ledger.Snapshot

	rawBalance, ok, err := s.kv.Get(KeyBalance)
	if err != nil {
		return snap, false, fmt.Errorf("load %s: %w", KeyBalance, err)
	}
	if !ok {
		return snap, false, nil
	}

	snap.CashBalance, err = strconv.ParseFloat(rawBalance, 64)
	if err != nil {
		return snap, false, fmt.Errorf("decode %s: %w", KeyBalance, err)
	}

	if raw, ok, err := s.kv.Get(KeyOpenPositions); err != nil {
		return snap, false, fmt.Errorf("load %s: %w", KeyOpenPositions, err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &snap.OpenPositions); err != nil {
			return snap, false, fmt.Errorf("decode %s: %w", KeyOpenPositions, err)
		}
	}

	if raw, ok, err := s.kv.Get(KeyClosedTrades); err != nil {
		return snap, false, fmt.Errorf("load %s: %w", KeyClosedTrades, err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &snap.ClosedTrades); err != nil {
			return snap, false, fmt.Errorf("decode %s: %w", KeyClosedTrades, err)
		}
	}

	if raw, ok, err := s.kv.Get(KeyCumulativeRealizedPnl); err != nil {
		return snap, false, fmt.Errorf("load %s: %w", KeyCumulativeRealizedPnl, err)
	} else if ok {
		snap.CumulativeRealizedPnl, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return snap, false, fmt.Errorf("decode %s: %w", KeyCumulativeRealizedPnl, err)
		}
	}

	return snap, true, nil
}
