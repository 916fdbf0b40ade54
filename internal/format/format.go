// Package format renders prices and durations for display and export.
package format

import (
	"fmt"
	"time"
)

// Price formats a price with precision appropriate for its magnitude.
// Micro-cap token prices need far more decimals than dollar-range ones.
func Price(p float64) string {
	switch {
	case p == 0:
		return "0.00"
	case p < 0.000001:
		return fmt.Sprintf("%.4e", p)
	case p < 0.01:
		return fmt.Sprintf("%.8f", p)
	case p < 1:
		return fmt.Sprintf("%.6f", p)
	case p < 100:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.2f", p)
	}
}

// Pnl formats a signed PnL amount with an explicit plus for gains.
func Pnl(p float64) string {
	if p >= 0 {
		return fmt.Sprintf("+$%.2f", p)
	}
	return fmt.Sprintf("-$%.2f", -p)
}

// HoldTime renders the duration a position was held, coarsening the units as
// the duration grows.
func HoldTime(openedAt, closedAt time.Time) string {
	d := closedAt.Sub(openedAt)
	if d < 0 {
		d = 0
	}

	seconds := int(d.Seconds())
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours%24, minutes%60)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes%60, seconds%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
