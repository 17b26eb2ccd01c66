package shared

import "github.com/charmbracelet/log"

const (
	// MinLimit is the smallest page size sent upstream.
	MinLimit = 1
	// MaxLimit is the largest page size sent upstream.
	MaxLimit = 50
)

// BoundLimit clamps limit to [MinLimit, maxN] and logs the effective value.
//
// A maxN below [MinLimit] is treated as [MaxLimit].
func BoundLimit(l *log.Logger, limit, maxN int) int {
	if maxN < MinLimit {
		maxN = MaxLimit
	}
	switch {
	case limit < MinLimit:
		limit = MinLimit
	case limit > maxN:
		limit = maxN
	}
	if l != nil {
		l.Debug("limit bounded", "limit", limit, "max", maxN)
	}
	return limit
}
