package blocks

import (
	"github.com/andresmejia3/needle/internal/palette"
	"github.com/andresmejia3/needle/internal/types"
)

// Extract partitions the stitch stream into polyline blocks in one forward pass.
//
// A ColorChange closes the open block (when it has points) and always advances
// the color index. End stops the walk. Only Normal stitches contribute points;
// Jump, Trim and Unknown are skipped without closing the block. Block i of the
// stream is colored palette[k mod len(palette)], where k is the number of color
// changes seen before it.
func Extract(stitches []types.Stitch, pal []string) []types.Block {
	var (
		out    []types.Block
		points []types.Point
		color  int
	)

	flush := func() {
		if len(points) == 0 {
			return
		}
		out = append(out, types.Block{Color: palette.At(pal, color), Points: points})
		points = nil
	}

walk:
	for _, s := range stitches {
		switch s.Kind {
		case types.ColorChange:
			flush()
			color++
		case types.End:
			break walk
		case types.Normal:
			points = append(points, types.Point{s.X, s.Y})
		}
	}
	flush()

	return out
}
