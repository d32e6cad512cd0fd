package preview

import (
	"errors"
	"fmt"
	"io"

	"github.com/andresmejia3/needle/internal/blocks"
	"github.com/andresmejia3/needle/internal/codec"
	"github.com/andresmejia3/needle/internal/logging"
	"github.com/andresmejia3/needle/internal/metrics"
	"github.com/andresmejia3/needle/internal/palette"
	"github.com/andresmejia3/needle/internal/render"
	"github.com/andresmejia3/needle/internal/types"
	"github.com/goccy/go-json"
)

// ModeVector tells the client to draw the blocks itself.
const ModeVector = "vector"

// Response is the preview payload.
type Response struct {
	Mode    string        `json:"mode"`
	Pattern []types.Block `json:"pattern"`
	Bounds  *types.Bounds `json:"bounds"`
	Stats   types.Metrics `json:"stats"`
	Image   string        `json:"image,omitempty"`
}

// Decoder is the part of the codec collaborator a preview needs.
type Decoder interface {
	Decode(filename string, data []byte) (*types.Pattern, error)
}

// Options controls the optional parts of a preview.
type Options struct {
	// Thumbnail embeds a PNG data URI in the response.
	Thumbnail bool
	Render    render.Options
}

// Assemble builds the vector preview of a decoded pattern.
func Assemble(p *types.Pattern) *Response {
	pal := palette.Resolve(p.Threads)
	out := blocks.Extract(p.Stitches, pal)
	if out == nil {
		out = []types.Block{}
	}
	return &Response{
		Mode:    ModeVector,
		Pattern: out,
		Bounds:  p.Bounds,
		Stats:   metrics.Compute(p),
	}
}

// Generate decodes data and assembles its preview.
// The thumbnail is drawn from the assembled blocks only; a pattern with
// nothing to draw simply gets no image.
func Generate(dec Decoder, filename string, data []byte, opts Options) (*Response, error) {
	p, err := dec.Decode(filename, data)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, codec.ErrEmptyPattern
	}

	resp := Assemble(p)
	logging.L().Debug("preview assembled",
		"file", filename,
		"blocks", len(resp.Pattern),
		"stitches", resp.Stats.Stitches,
		"colors", resp.Stats.Colors,
	)

	if opts.Thumbnail {
		img, err := render.PNG(resp.Pattern, resp.Bounds, opts.Render)
		switch {
		case errors.Is(err, render.ErrNothingToDraw):
			logging.L().Debug("thumbnail skipped", "file", filename, "err", err)
		case err != nil:
			return nil, fmt.Errorf("render thumbnail: %w", err)
		default:
			resp.Image = render.DataURI(img)
		}
	}
	return resp, nil
}

// Write serializes the response as JSON.
func (r *Response) Write(w io.Writer, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}
