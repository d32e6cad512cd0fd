package codec

import (
	"errors"

	"github.com/andresmejia3/needle/internal/blocks"
	"github.com/andresmejia3/needle/internal/palette"
	"github.com/andresmejia3/needle/internal/render"
	"github.com/andresmejia3/needle/internal/types"
)

// PNG writes a raster thumbnail of the pattern. It cannot be read back.
type PNG struct {
	Options render.Options
}

func (PNG) Name() string         { return "png" }
func (PNG) Extensions() []string { return []string{"png"} }
func (PNG) CanDecode() bool      { return false }
func (PNG) CanEncode() bool      { return true }

func (PNG) Decode([]byte) (*types.Pattern, error) {
	return nil, &DecodeError{Format: "png", Reason: "format can only be written"}
}

func (c PNG) Encode(p *types.Pattern) ([]byte, error) {
	opts := c.Options
	if opts.Size == 0 {
		opts = render.DefaultOptions()
	}
	out, err := render.PNG(blocks.Extract(p.Stitches, palette.Resolve(p.Threads)), p.Bounds, opts)
	if err != nil {
		if errors.Is(err, render.ErrNothingToDraw) {
			return nil, &EncodeError{Format: "png", Reason: "pattern has no stitches to draw", Err: err}
		}
		return nil, encodeErr("png", err)
	}
	return out, nil
}
