package ledger

import "time"

// Position is an open simulated holding of a token, tracked against the
// entry price and quantity it was bought at. Amount is the cash debited at
// open and never changes afterwards.
type Position struct {
	ID              string    `json:"id"`
	ContractAddress string    `json:"contractAddress"`
	Symbol          string    `json:"symbol"`
	EntryPrice      float64   `json:"entryPrice"`
	Quantity        float64   `json:"quantity"`
	Amount          float64   `json:"amount"`
	OpenedAt        time.Time `json:"openedAt"`
	ImageRef        string    `json:"imageRef,omitempty"`
}

// ClosedTrade is the immutable history record produced when a position is
// closed.
type ClosedTrade struct {
	Position
	ExitPrice float64   `json:"exitPrice"`
	PnL       float64   `json:"pnl"`
	ClosedAt  time.Time `json:"closedAt"`
}

// PctChange returns the percentage change between entry and exit price.
func (t *ClosedTrade) PctChange() float64 {
	if t.EntryPrice <= 0 {
		return 0
	}
	return ((t.ExitPrice - t.EntryPrice) / t.EntryPrice) * 100
}

// Quote carries the fresh market data needed to open a position.
type Quote struct {
	Price    float64
	Symbol   string
	ImageRef string
}

// Snapshot is the durable view of the ledger. Field names double as the
// logical persistence keys.
type Snapshot struct {
	CashBalance           float64       `json:"balance"`
	OpenPositions         []Position    `json:"openPositions"`
	ClosedTrades          []ClosedTrade `json:"closedTrades"`
	CumulativeRealizedPnl float64       `json:"cumulativeRealizedPnl"`
}

// Persister stores ledger snapshots durably. Implementations must tolerate
// being called on every mutating operation.
type Persister interface {
	SaveSnapshot(snap Snapshot) error
	LoadSnapshot() (Snapshot, bool, error)
}
