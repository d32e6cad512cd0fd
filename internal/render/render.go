package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/andresmejia3/needle/internal/palette"
	"github.com/andresmejia3/needle/internal/types"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

const (
	// supersample is the factor the canvas is drawn at before downscaling.
	supersample = 2
	// fill is the share of the canvas the design occupies; the rest is margin.
	fill = 0.9
)

// ErrNothingToDraw is returned when there are no points to rasterize.
var ErrNothingToDraw = errors.New("pattern has no stitches to draw")

// Options controls thumbnail rendering.
type Options struct {
	// Size is the longest side of the output image, in pixels.
	Size int
	// LineWidth is the stroke width in output pixels.
	LineWidth float64
	// Background is "#RRGGBB", or empty for a transparent image.
	Background string
}

// DefaultOptions matches the 400x400 preview of the web client.
func DefaultOptions() Options {
	return Options{Size: 400, LineWidth: 3}
}

// transform maps pattern units to canvas pixels.
type transform struct {
	minX, minY float64
	scale      float64
	offX, offY float64
}

func (t transform) apply(p types.Point) (float32, float32) {
	x := (float64(p.X())-t.minX)*t.scale + t.offX
	y := (float64(p.Y())-t.minY)*t.scale + t.offY
	return float32(x), float32(y)
}

// Thumbnail rasterizes already-assembled blocks. When bounds is nil the box
// around the block points is used. The result keeps the design's aspect ratio
// with its longest side equal to opts.Size.
func Thumbnail(blocks []types.Block, bounds *types.Bounds, opts Options) (*image.RGBA, error) {
	if opts.Size <= 0 || opts.LineWidth <= 0 {
		return nil, fmt.Errorf("invalid thumbnail options: size=%d line width=%g", opts.Size, opts.LineWidth)
	}

	box := bounds
	if box == nil {
		box = pointBounds(blocks)
	}
	if box == nil {
		return nil, ErrNothingToDraw
	}

	w, h := float64(max(box.Width(), 1)), float64(max(box.Height(), 1))
	longest := math.Max(w, h)
	outW := max(1, int(math.Round(float64(opts.Size)*w/longest)))
	outH := max(1, int(math.Round(float64(opts.Size)*h/longest)))

	cw, ch := outW*supersample, outH*supersample
	canvas := image.NewRGBA(image.Rect(0, 0, cw, ch))

	if opts.Background != "" {
		bg, err := palette.ParseHex(opts.Background)
		if err != nil {
			return nil, fmt.Errorf("thumbnail background: %w", err)
		}
		xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, xdraw.Src)
	}

	scale := fill * float64(cw) / w
	if s := fill * float64(ch) / h; s < scale {
		scale = s
	}
	tf := transform{
		minX:  float64(box.MinX()),
		minY:  float64(box.MinY()),
		scale: scale,
		offX:  (float64(cw) - w*scale) / 2,
		offY:  (float64(ch) - h*scale) / 2,
	}
	half := float32(opts.LineWidth * supersample / 2)

	z := vector.NewRasterizer(cw, ch)
	for _, b := range blocks {
		if len(b.Points) == 0 {
			continue
		}
		z.Reset(cw, ch)
		strokeBlock(z, b.Points, tf, half)
		z.Draw(canvas, canvas.Bounds(), image.NewUniform(blockColor(b.Color)), image.Point{})
	}

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), xdraw.Over, nil)
	return out, nil
}

func blockColor(hex string) color.Color {
	c, err := palette.ParseHex(hex)
	if err != nil {
		return color.Black
	}
	return c
}

// strokeBlock adds one polyline to z. Every segment becomes a quad and every
// vertex a square dot; all shapes share one winding so overlaps never cancel.
func strokeBlock(z *vector.Rasterizer, pts []types.Point, tf transform, half float32) {
	px, py := tf.apply(pts[0])
	dot(z, px, py, half)
	for _, p := range pts[1:] {
		x, y := tf.apply(p)
		segment(z, px, py, x, y, half)
		dot(z, x, y, half)
		px, py = x, y
	}
}

func segment(z *vector.Rasterizer, x0, y0, x1, y1, half float32) {
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*half, dx/l*half
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}

func dot(z *vector.Rasterizer, x, y, half float32) {
	z.MoveTo(x-half, y-half)
	z.LineTo(x-half, y+half)
	z.LineTo(x+half, y+half)
	z.LineTo(x+half, y-half)
	z.ClosePath()
}

func pointBounds(blocks []types.Block) *types.Bounds {
	var stitches []types.Stitch
	for _, b := range blocks {
		for _, p := range b.Points {
			stitches = append(stitches, types.Stitch{X: p.X(), Y: p.Y()})
		}
	}
	return types.ComputeBounds(stitches)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

// PNG renders blocks and returns the encoded image.
func PNG(blocks []types.Block, bounds *types.Bounds, opts Options) ([]byte, error) {
	img, err := Thumbnail(blocks, bounds, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURI wraps PNG bytes in a data URI for the preview payload.
func DataURI(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}
