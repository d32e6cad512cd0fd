package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/andresmejia3/needle/internal/types"
)

// CSV reads and writes the row-tagged text layout used by embroidery tooling:
// ">" header values, "$" threads, "*" stitches, "#" comments.
type CSV struct{}

func (CSV) Name() string         { return "csv" }
func (CSV) Extensions() []string { return []string{"csv"} }
func (CSV) CanDecode() bool      { return true }
func (CSV) CanEncode() bool      { return true }

var extentKeys = [4]string{"EXTENTS_LEFT:", "EXTENTS_TOP:", "EXTENTS_RIGHT:", "EXTENTS_BOTTOM:"}

func (CSV) Decode(data []byte) (*types.Pattern, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, decodeErr("csv", err)
	}

	var (
		stitches []types.Stitch
		threads  []types.Thread
		header   types.Header
		extents  = map[string]int{}
		rows     int
	)

	for i, rec := range records {
		line := i + 1
		if len(rec) == 0 || rec[0] == "#" || (len(rec) == 1 && rec[0] == "") {
			continue
		}
		rows++

		switch rec[0] {
		case ">":
			if len(rec) < 3 {
				return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d: header row needs a key and a value", line)}
			}
			if err := readHeader(&header, extents, rec[1], rec[2]); err != nil {
				return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d", line), Err: err}
			}
		case "$":
			if len(rec) < 3 {
				return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d: thread row needs an index and a color", line)}
			}
			th := types.Thread{Color: rec[2]}
			if len(rec) > 3 {
				th.Description = rec[3]
			}
			if len(rec) > 4 {
				th.Catalog = rec[4]
			}
			threads = append(threads, th)
		case "*":
			if len(rec) < 5 {
				return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d: stitch row needs index, type, x and y", line)}
			}
			s, err := readStitch(rec[2], rec[3], rec[4])
			if err != nil {
				return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d", line), Err: err}
			}
			stitches = append(stitches, s)
		default:
			return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d: unknown row tag %q", line, rec[0])}
		}
	}

	if rows == 0 {
		return nil, nil
	}

	p := newPattern(stitches, threads)
	p.Header = &header
	if len(extents) > 0 {
		if len(extents) != len(extentKeys) {
			return nil, &DecodeError{Format: "csv", Reason: "extents must declare left, top, right and bottom"}
		}
		b := types.Bounds{extents[extentKeys[0]], extents[extentKeys[1]], extents[extentKeys[2]], extents[extentKeys[3]]}
		if err := validBounds(&b); err != nil {
			return nil, decodeErr("csv", err)
		}
		p.Bounds = &b
	}
	return finish(p), nil
}

func readHeader(h *types.Header, extents map[string]int, key, value string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	switch key {
	case "NAME:":
		h.Name = value
		return nil
	case "STITCH_COUNT:", "COLOR_CHANGE_COUNT:", extentKeys[0], extentKeys[1], extentKeys[2], extentKeys[3]:
	default:
		// Unrecognized header values are informational.
		return nil
	}

	n, err := readCoord(value)
	if err != nil {
		return fmt.Errorf("%s %w", key, err)
	}
	switch key {
	case "STITCH_COUNT:":
		h.StitchCount = intPtr(n)
	case "COLOR_CHANGE_COUNT:":
		h.ColorChanges = intPtr(n)
	default:
		extents[key] = n
	}
	return nil
}

func readStitch(kind, xs, ys string) (types.Stitch, error) {
	x, err := readCoord(xs)
	if err != nil {
		return types.Stitch{}, fmt.Errorf("stitch x: %w", err)
	}
	y, err := readCoord(ys)
	if err != nil {
		return types.Stitch{}, fmt.Errorf("stitch y: %w", err)
	}
	return types.Stitch{X: x, Y: y, Kind: types.ParseStitchKind(kind)}, nil
}

func readCoord(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return coord(f)
}

func (CSV) Encode(p *types.Pattern) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"#", "[VAR_NAME]", "[VAR_VALUE]"}}
	if name := p.Name(); name != "" {
		rows = append(rows, []string{">", "NAME:", name})
	}
	if p.Header != nil && p.Header.StitchCount != nil {
		rows = append(rows, []string{">", "STITCH_COUNT:", strconv.Itoa(*p.Header.StitchCount)})
	}
	if n, err := p.CountColorChanges(); err == nil {
		rows = append(rows, []string{">", "COLOR_CHANGE_COUNT:", strconv.Itoa(n)})
	}
	if p.Bounds != nil {
		for i, key := range extentKeys {
			rows = append(rows, []string{">", key, strconv.Itoa(p.Bounds[i])})
		}
	}

	rows = append(rows, []string{"#", "[THREAD_NUMBER]", "[HEX_COLOR]", "[DESCRIPTION]", "[CATALOG]"})
	for i, th := range p.Threads {
		rows = append(rows, []string{"$", strconv.Itoa(i), th.Color, th.Description, th.Catalog})
	}

	rows = append(rows, []string{"#", "[STITCH_INDEX]", "[STITCH_TYPE]", "[X]", "[Y]"})
	for i, s := range p.Stitches {
		rows = append(rows, []string{"*", strconv.Itoa(i), s.Kind.String(), strconv.Itoa(s.X), strconv.Itoa(s.Y)})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, encodeErr("csv", err)
	}
	return buf.Bytes(), nil
}
