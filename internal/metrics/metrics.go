package metrics

import (
	"github.com/andresmejia3/needle/internal/logging"
	"github.com/andresmejia3/needle/internal/types"
)

// unitsPerMM is the number of pattern units in one millimeter (1 unit = 0.1 mm).
const unitsPerMM = 10.0

// Compute derives the summary metrics of a pattern.
// The stitch count and color-change count come from the pattern's own counters;
// when the color-change counter is unavailable, it falls back to max(0, colors-1).
func Compute(p *types.Pattern) types.Metrics {
	m := types.Metrics{
		Stitches: p.CountStitches(),
		Colors:   len(p.Threads),
	}

	if b := p.Bounds; b != nil {
		m.Width = extent(b.MinX(), b.MaxX())
		m.Height = extent(b.MinY(), b.MaxY())
	}

	changes, err := p.CountColorChanges()
	if err != nil {
		logging.L().Debug("native color change counter unavailable", "err", err)
		changes = max(0, m.Colors-1)
	}
	m.Changes = changes

	return m
}

// extent is the span from lo to hi in millimeters. It subtracts in float64 so
// extreme coordinates cannot overflow, and never goes below zero.
func extent(lo, hi int) float64 {
	return max(0, float64(hi)-float64(lo)) / unitsPerMM
}
