package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// StitchKind is the command attached to a stitch coordinate.
type StitchKind uint8

const (
	Normal StitchKind = iota
	Jump
	Trim
	ColorChange
	End
	// Unknown covers any command this build does not recognize.
	Unknown
)

var kindNames = [...]string{
	Normal:      "STITCH",
	Jump:        "JUMP",
	Trim:        "TRIM",
	ColorChange: "COLOR_CHANGE",
	End:         "END",
	Unknown:     "UNKNOWN",
}

func (k StitchKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[Unknown]
}

// ParseStitchKind maps a textual command name to a StitchKind.
// Unrecognized names map to Unknown rather than failing.
func ParseStitchKind(s string) StitchKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STITCH", "NORMAL":
		return Normal
	case "JUMP":
		return Jump
	case "TRIM":
		return Trim
	case "COLOR_CHANGE", "COLORCHANGE", "COLOR-CHANGE", "STOP":
		return ColorChange
	case "END":
		return End
	default:
		return Unknown
	}
}

// Stitch is one coordinate sample in tenths of a millimeter.
type Stitch struct {
	X    int
	Y    int
	Kind StitchKind
}

// Thread is a declared thread color. Color is kept as written by the source file.
type Thread struct {
	Color       string `json:"color" yaml:"color"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Catalog     string `json:"catalog,omitempty" yaml:"catalog,omitempty"`
}

// ErrInvalidColor is returned by HexColor when the declared color is not #RRGGBB.
var ErrInvalidColor = errors.New("invalid thread color")

// HexColor returns the thread color normalized to upper-case "#RRGGBB".
func (t Thread) HexColor() (string, error) {
	s := strings.TrimPrefix(strings.TrimSpace(t.Color), "#")
	if len(s) != 6 {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, t.Color)
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return "", fmt.Errorf("%w: %q", ErrInvalidColor, t.Color)
		}
	}
	return "#" + strings.ToUpper(s), nil
}

// Point is an (x, y) pair. It serializes as a two element array.
type Point [2]int

func (p Point) X() int { return p[0] }
func (p Point) Y() int { return p[1] }

// MaxCoord is the largest coordinate magnitude a pattern may hold.
const MaxCoord = math.MaxInt32

// Bounds is the axis-aligned box [minX, minY, maxX, maxY] in tenths of a millimeter.
type Bounds [4]int

func (b Bounds) MinX() int   { return b[0] }
func (b Bounds) MinY() int   { return b[1] }
func (b Bounds) MaxX() int   { return b[2] }
func (b Bounds) MaxY() int   { return b[3] }
func (b Bounds) Width() int  { return b[2] - b[0] }
func (b Bounds) Height() int { return b[3] - b[1] }

// ComputeBounds returns the box around every stitch coordinate, or nil for an empty stream.
func ComputeBounds(stitches []Stitch) *Bounds {
	if len(stitches) == 0 {
		return nil
	}
	b := Bounds{stitches[0].X, stitches[0].Y, stitches[0].X, stitches[0].Y}
	for _, s := range stitches[1:] {
		b[0] = min(b[0], s.X)
		b[1] = min(b[1], s.Y)
		b[2] = max(b[2], s.X)
		b[3] = max(b[3], s.Y)
	}
	return &b
}

// Header carries counters recorded by the source format. Nil fields were not recorded.
type Header struct {
	Name         string
	StitchCount  *int
	ColorChanges *int
}

var (
	// ErrNoColorChangeCounter means the source format keeps no color-change tally.
	ErrNoColorChangeCounter = errors.New("pattern has no color change counter")
	// ErrInvalidCounter means a recorded counter holds an impossible value.
	ErrInvalidCounter = errors.New("pattern counter is invalid")
)

// Pattern is one decoded embroidery design.
// Threads[i] is paired with the i-th color block by position only.
type Pattern struct {
	Stitches []Stitch
	Threads  []Thread
	Bounds   *Bounds
	Header   *Header
}

// CountStitches returns the stitch count recorded by the source format,
// falling back to the length of the stitch stream.
func (p *Pattern) CountStitches() int {
	if p.Header != nil && p.Header.StitchCount != nil && *p.Header.StitchCount >= 0 {
		return *p.Header.StitchCount
	}
	return len(p.Stitches)
}

// CountColorChanges returns the color-change tally recorded by the source format.
func (p *Pattern) CountColorChanges() (int, error) {
	if p.Header == nil || p.Header.ColorChanges == nil {
		return 0, ErrNoColorChangeCounter
	}
	n := *p.Header.ColorChanges
	if n < 0 {
		return 0, fmt.Errorf("%w: color changes = %d", ErrInvalidCounter, n)
	}
	return n, nil
}

// Name returns the design name recorded by the source format, if any.
func (p *Pattern) Name() string {
	if p.Header == nil {
		return ""
	}
	return p.Header.Name
}

// CountKind counts the stitches of the given kind.
func CountKind(stitches []Stitch, kind StitchKind) int {
	n := 0
	for _, s := range stitches {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// Block is a contiguous run of Normal stitches drawn in one color.
type Block struct {
	Color  string  `json:"color"`
	Points []Point `json:"stitches"`
}

// Metrics summarizes a pattern. Width and Height are in millimeters.
type Metrics struct {
	Stitches int     `json:"stitches"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Colors   int     `json:"colors"`
	Changes  int     `json:"changes"`
}

// Job is a single file handed to a batch worker.
type Job struct {
	Index int
	Path  string
}
