package palette

import (
	"fmt"
	"image/color"
	"strconv"

	"github.com/andresmejia3/needle/internal/logging"
	"github.com/andresmejia3/needle/internal/types"
)

// Substitute replaces a thread color that cannot be read.
const Substitute = "#000000"

// fallback is used when a pattern declares no threads. Order is part of the output contract.
var fallback = [...]string{
	"#0000FF", "#00FF00", "#FF0000", "#FFFF00",
	"#FF00FF", "#00FFFF", "#FFA500", "#800080",
	"#FFC0CB", "#A52A2A", "#D3D3D3", "#000000",
}

// Fallback returns a copy of the 12-color cycle.
func Fallback() []string {
	out := make([]string, len(fallback))
	copy(out, fallback[:])
	return out
}

// Resolve returns one hex color per thread, or the fallback cycle when there are none.
// A thread whose color cannot be read gets Substitute; the rest are unaffected.
// The result is not wrapped; use At for modulo indexing.
func Resolve(threads []types.Thread) []string {
	if len(threads) == 0 {
		return Fallback()
	}

	out := make([]string, len(threads))
	for i, th := range threads {
		hex, err := readColor(th)
		if err != nil {
			logging.L().Debug("thread color unreadable, substituting", "index", i, "err", err)
			hex = Substitute
		}
		out[i] = hex
	}
	return out
}

// readColor isolates a single thread read so one bad entry cannot abort the rest.
func readColor(th types.Thread) (hex string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading thread color: %v", r)
		}
	}()
	return th.HexColor()
}

// At returns p[i mod len(p)], or "" for an empty palette.
func At(p []string, i int) string {
	if len(p) == 0 {
		return ""
	}
	i %= len(p)
	if i < 0 {
		i += len(p)
	}
	return p[i]
}

// ParseHex converts "#RRGGBB" into an opaque color.
func ParseHex(hex string) (color.NRGBA, error) {
	norm, err := types.Thread{Color: hex}.HexColor()
	if err != nil {
		return color.NRGBA{}, err
	}
	v, err := strconv.ParseUint(norm[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, err
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}
