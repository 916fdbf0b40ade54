// Package store provides the durable key-value persistence layer and the
// snapshot codec that maps ledger state onto it.
package store

// KV is a durable string-keyed store. Implementations must tolerate being
// unavailable: callers treat failures as reportable, not fatal.
type KV interface {
	// Get returns the value for key. The second result is false when the
	// key has never been written.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Logical snapshot keys. They are overwritten as a group on every mutating
// ledger operation; a crash between the individual writes is a known gap.
const (
	KeyBalance               = "balance"
	KeyOpenPositions         = "openPositions"
	KeyClosedTrades          = "closedTrades"
	KeyCumulativeRealizedPnl = "cumulativeRealizedPnl"
)
