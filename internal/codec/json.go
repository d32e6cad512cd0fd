package codec

import (
	"bytes"
	"errors"
	"io"

	"github.com/andresmejia3/needle/internal/types"
	"github.com/goccy/go-json"
)

// JSON reads and writes the needle JSON document.
type JSON struct{}

func (JSON) Name() string         { return "json" }
func (JSON) Extensions() []string { return []string{"json"} }
func (JSON) CanDecode() bool      { return true }
func (JSON) CanEncode() bool      { return true }

func (JSON) Decode(data []byte) (*types.Pattern, error) {
	var doc *document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, decodeErr("json", err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Format: "json", Reason: "unexpected data after the document", Err: err}
	}
	if doc == nil {
		return nil, nil
	}
	p, err := doc.pattern()
	if err != nil {
		return nil, decodeErr("json", err)
	}
	return p, nil
}

func (JSON) Encode(p *types.Pattern) ([]byte, error) {
	out, err := json.Marshal(newDocument(p))
	if err != nil {
		return nil, encodeErr("json", err)
	}
	return append(out, '\n'), nil
}
