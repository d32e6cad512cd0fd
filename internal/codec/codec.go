package codec

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/andresmejia3/needle/internal/logging"
	"github.com/andresmejia3/needle/internal/render"
	"github.com/andresmejia3/needle/internal/types"
)

// Codec reads and/or writes one pattern file format.
type Codec interface {
	// Name is the canonical lower-case format token, e.g. "json".
	Name() string
	// Extensions lists accepted file extensions without the dot.
	Extensions() []string
	CanDecode() bool
	CanEncode() bool
	// Decode must never return a pattern with nil Stitches or Threads.
	Decode(data []byte) (*types.Pattern, error)
	Encode(p *types.Pattern) ([]byte, error)
}

// Registry resolves format tokens and file extensions to codecs.
// It is safe for concurrent use once populated.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Codec
	byExt  map[string]Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Codec),
		byExt:  make(map[string]Codec),
	}
}

// Default returns a registry holding every built-in format.
func Default(thumb render.Options) *Registry {
	r := NewRegistry()
	r.Register(JSON{})
	r.Register(YAML{})
	r.Register(CSV{})
	r.Register(PNG{Options: thumb})
	return r
}

// Register adds c under its name and extensions, replacing earlier entries.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[normalize(c.Name())] = c
	for _, ext := range c.Extensions() {
		r.byExt[normalize(ext)] = c
	}
}

// Lookup finds a codec by format token or extension, ignoring case and a leading dot.
func (r *Registry) Lookup(format string) (Codec, bool) {
	key := normalize(format)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byName[key]; ok {
		return c, true
	}
	c, ok := r.byExt[key]
	return c, ok
}

// Formats returns the registered codecs sorted by name.
func (r *Registry) Formats() []Codec {
	r.mu.RLock()
	out := make([]Codec, 0, len(r.byName))
	for _, c := range r.byName {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Decode reads data using the format implied by filename's extension.
// A ".zst" suffix, or zstd magic bytes, means the payload is decompressed first.
func (r *Registry) Decode(filename string, data []byte) (*types.Pattern, error) {
	name, compressed := trimCompressed(filename)
	if compressed || isZstd(data) {
		raw, err := decompress(data)
		if err != nil {
			return nil, decodeErr("zstd", err)
		}
		data = raw
	}

	ext := normalize(filepath.Ext(name))
	if ext == "" {
		return nil, &DecodeError{Reason: "file has no extension"}
	}
	c, ok := r.Lookup(ext)
	if !ok {
		return nil, &DecodeError{Format: ext, Reason: "unsupported input format"}
	}
	if !c.CanDecode() {
		return nil, &DecodeError{Format: c.Name(), Reason: "format can only be written"}
	}

	p, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	if p != nil {
		logging.L().Debug("pattern decoded", "file", filename, "format", c.Name(), "stitches", len(p.Stitches), "threads", len(p.Threads))
	}
	return p, nil
}

// Encode writes p in the requested format. "<format>.zst" compresses the output.
func (r *Registry) Encode(p *types.Pattern, format string) ([]byte, error) {
	inner, compressed := trimCompressed(normalize(format))
	if inner == "" {
		return nil, &EncodeError{Format: format, Reason: "no target format specified", Unsupported: true}
	}
	c, ok := r.Lookup(inner)
	if !ok {
		return nil, &EncodeError{Format: format, Reason: "unsupported output format", Unsupported: true}
	}
	if !c.CanEncode() {
		return nil, &EncodeError{Format: c.Name(), Reason: "format can only be read", Unsupported: true}
	}

	out, err := c.Encode(p)
	if err != nil {
		return nil, err
	}
	if compressed {
		out = compress(out)
	}
	return out, nil
}

// Convert decodes data and re-encodes it in format.
func (r *Registry) Convert(filename string, data []byte, format string) ([]byte, error) {
	p, err := r.Decode(filename, data)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrEmptyPattern
	}
	out, err := r.Encode(p, format)
	if err != nil {
		return nil, err
	}
	logging.L().Debug("pattern converted", "file", filename, "format", format, "bytes", len(out))
	return out, nil
}

// Supported reports whether format names a registered codec that can write.
func (r *Registry) Supported(format string) bool {
	inner, _ := trimCompressed(normalize(format))
	c, ok := r.Lookup(inner)
	return ok && c.CanEncode()
}

func normalize(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
}

// trimCompressed strips a trailing zst extension.
func trimCompressed(name string) (string, bool) {
	lower := strings.ToLower(name)
	if lower == "zst" || lower == ".zst" {
		return "", true
	}
	if strings.HasSuffix(lower, ".zst") {
		return name[:len(name)-len(".zst")], true
	}
	return name, false
}

func newPattern(stitches []types.Stitch, threads []types.Thread) *types.Pattern {
	if stitches == nil {
		stitches = []types.Stitch{}
	}
	if threads == nil {
		threads = []types.Thread{}
	}
	return &types.Pattern{Stitches: stitches, Threads: threads}
}

// finish fills bounds and the color-change counter the source did not record.
func finish(p *types.Pattern) *types.Pattern {
	if p.Bounds == nil {
		p.Bounds = types.ComputeBounds(p.Stitches)
	}
	if p.Header == nil {
		p.Header = &types.Header{}
	}
	if p.Header.ColorChanges == nil {
		n := types.CountKind(p.Stitches, types.ColorChange)
		p.Header.ColorChanges = &n
	}
	return p
}

func intPtr(v int) *int { return &v }

// coord rounds f to a whole pattern unit, rejecting values outside ±MaxCoord.
func coord(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("coordinate %v is not finite", f)
	}
	r := math.Round(f)
	if math.Abs(r) > types.MaxCoord {
		return 0, fmt.Errorf("coordinate %v is out of range ±%d", f, types.MaxCoord)
	}
	return int(r), nil
}

func validBounds(b *types.Bounds) error {
	if b == nil {
		return nil
	}
	for _, v := range *b {
		if v < -types.MaxCoord || v > types.MaxCoord {
			return fmt.Errorf("bounds %v exceed ±%d", *b, types.MaxCoord)
		}
	}
	if b.MaxX() < b.MinX() || b.MaxY() < b.MinY() {
		return fmt.Errorf("bounds %v are inverted", *b)
	}
	return nil
}
