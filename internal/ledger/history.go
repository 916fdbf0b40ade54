package ledger

import (
	"sort"
	"sync"
)

// History is the append-only log of closed trades. Entries are kept in
// insertion order; reads never mutate them.
type History struct {
	mu     sync.RWMutex
	trades []ClosedTrade
}

// NewHistory creates an empty trade history.
func NewHistory() *History {
	return &History{}
}

// Append records a closed trade.
func (h *History) Append(t ClosedTrade) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades = append(h.trades, t)
}

// Len returns the number of recorded trades.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.trades)
}

// All returns a copy of every trade in insertion order.
func (h *History) All() []ClosedTrade {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ClosedTrade, len(h.trades))
	copy(out, h.trades)
	return out
}

// TotalPages returns the number of pages at the given page size, never less
// than one so an empty history still has a valid first page.
func (h *History) TotalPages(pageSize int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalPagesLocked(pageSize)
}

func (h *History) totalPagesLocked(pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	pages := (len(h.trades) + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// Page returns one page of trades sorted by close time, newest first. The
// sort is stable, so trades closed at the same instant keep insertion order.
// An out-of-range page number is clamped to the nearest valid page rather
// than returning nothing while data exists.
func (h *History) Page(page, pageSize int) []ClosedTrade {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if pageSize <= 0 || len(h.trades) == 0 {
		return nil
	}

	if page < 1 {
		page = 1
	}
	if total := h.totalPagesLocked(pageSize); page > total {
		page = total
	}

	sorted := make([]ClosedTrade, len(h.trades))
	copy(sorted, h.trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ClosedAt.After(sorted[j].ClosedAt)
	})

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(sorted) {
		end = len(sorted)
	}

	out := make([]ClosedTrade, end-start)
	copy(out, sorted[start:end])
	return out
}

// ForToken returns every trade for one contract address in insertion order.
func (h *History) ForToken(mint string) []ClosedTrade {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []ClosedTrade
	for _, t := range h.trades {
		if t.ContractAddress == mint {
			out = append(out, t)
		}
	}
	return out
}

// Stats holds aggregate statistics over the closed trade history.
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	WinCount    int     `json:"win_count"`
	LossCount   int     `json:"loss_count"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	AvgPnL      float64 `json:"avg_pnl"`
	BestPnL     float64 `json:"best_pnl"`
	WorstPnL    float64 `json:"worst_pnl"`
}

// Stats computes aggregate statistics over all closed trades.
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{TotalTrades: len(h.trades)}
	if len(h.trades) == 0 {
		return stats
	}

	stats.BestPnL = h.trades[0].PnL
	stats.WorstPnL = h.trades[0].PnL

	for _, t := range h.trades {
		stats.TotalPnL += t.PnL
		if t.PnL > 0 {
			stats.WinCount++
		} else if t.PnL < 0 {
			stats.LossCount++
		}
		if t.PnL > stats.BestPnL {
			stats.BestPnL = t.PnL
		}
		if t.PnL < stats.WorstPnL {
			stats.WorstPnL = t.PnL
		}
	}

	stats.WinRate = float64(stats.WinCount) / float64(len(h.trades)) * 100
	stats.AvgPnL = stats.TotalPnL / float64(len(h.trades))
	return stats
}
