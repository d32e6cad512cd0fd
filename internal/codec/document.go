package codec

import (
	"fmt"

	"github.com/andresmejia3/needle/internal/types"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// document is the shape shared by the JSON and YAML formats.
type document struct {
	Name         string         `json:"name,omitempty" yaml:"name,omitempty"`
	StitchCount  *int           `json:"stitch_count,omitempty" yaml:"stitch_count,omitempty"`
	ColorChanges *int           `json:"color_changes,omitempty" yaml:"color_changes,omitempty"`
	Bounds       *types.Bounds  `json:"bounds,omitempty" yaml:"bounds,omitempty,flow"`
	Threads      []types.Thread `json:"threads" yaml:"threads"`
	Stitches     []stitchRecord `json:"stitches" yaml:"stitches"`
}

// stitchRecord is written as [x, y, "KIND"]. The kind may be omitted on input.
type stitchRecord types.Stitch

func (s stitchRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.X, s.Y, s.Kind.String()})
}

func (s *stitchRecord) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("stitch must be [x, y, kind]: %w", err)
	}
	if len(raw) < 2 || len(raw) > 3 {
		return fmt.Errorf("stitch must have 2 or 3 elements, got %d", len(raw))
	}

	var x, y float64
	if err := json.Unmarshal(raw[0], &x); err != nil {
		return fmt.Errorf("stitch x: %w", err)
	}
	if err := json.Unmarshal(raw[1], &y); err != nil {
		return fmt.Errorf("stitch y: %w", err)
	}
	kind := "STITCH"
	if len(raw) == 3 {
		if err := json.Unmarshal(raw[2], &kind); err != nil {
			return fmt.Errorf("stitch kind: %w", err)
		}
	}

	return s.set(x, y, kind)
}

func (s stitchRecord) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.SequenceNode,
		Style: yaml.FlowStyle,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(s.X)},
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(s.Y)},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Kind.String()},
		},
	}, nil
}

func (s *stitchRecord) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: stitch must be a sequence [x, y, kind]", n.Line)
	}
	if len(n.Content) < 2 || len(n.Content) > 3 {
		return fmt.Errorf("line %d: stitch must have 2 or 3 elements, got %d", n.Line, len(n.Content))
	}

	var x, y float64
	if err := n.Content[0].Decode(&x); err != nil {
		return fmt.Errorf("line %d: stitch x: %w", n.Line, err)
	}
	if err := n.Content[1].Decode(&y); err != nil {
		return fmt.Errorf("line %d: stitch y: %w", n.Line, err)
	}
	kind := "STITCH"
	if len(n.Content) == 3 {
		if err := n.Content[2].Decode(&kind); err != nil {
			return fmt.Errorf("line %d: stitch kind: %w", n.Line, err)
		}
	}

	return s.set(x, y, kind)
}

// set stores coordinates rounded to whole units.
func (s *stitchRecord) set(x, y float64, kind string) error {
	var err error
	if s.X, err = coord(x); err != nil {
		return fmt.Errorf("stitch x: %w", err)
	}
	if s.Y, err = coord(y); err != nil {
		return fmt.Errorf("stitch y: %w", err)
	}
	s.Kind = types.ParseStitchKind(kind)
	return nil
}

func (d *document) pattern() (*types.Pattern, error) {
	if err := validBounds(d.Bounds); err != nil {
		return nil, err
	}

	stitches := make([]types.Stitch, len(d.Stitches))
	for i, s := range d.Stitches {
		stitches[i] = types.Stitch(s)
	}

	p := newPattern(stitches, d.Threads)
	p.Bounds = d.Bounds
	p.Header = &types.Header{
		Name:         d.Name,
		StitchCount:  d.StitchCount,
		ColorChanges: d.ColorChanges,
	}
	return finish(p), nil
}

func newDocument(p *types.Pattern) *document {
	d := &document{
		Name:     p.Name(),
		Bounds:   p.Bounds,
		Threads:  p.Threads,
		Stitches: make([]stitchRecord, len(p.Stitches)),
	}
	if d.Threads == nil {
		d.Threads = []types.Thread{}
	}
	for i, s := range p.Stitches {
		d.Stitches[i] = stitchRecord(s)
	}
	if p.Header != nil && p.Header.StitchCount != nil {
		d.StitchCount = intPtr(*p.Header.StitchCount)
	}
	if n, err := p.CountColorChanges(); err == nil {
		d.ColorChanges = intPtr(n)
	}
	return d
}
