package codec

import (
	"bytes"
	"errors"
	"io"

	"github.com/andresmejia3/needle/internal/types"
	"gopkg.in/yaml.v3"
)

// YAML reads and writes the needle document as YAML.
type YAML struct{}

func (YAML) Name() string         { return "yaml" }
func (YAML) Extensions() []string { return []string{"yaml", "yml"} }
func (YAML) CanDecode() bool      { return true }
func (YAML) CanEncode() bool      { return true }

func (YAML) Decode(data []byte) (*types.Pattern, error) {
	var doc *document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, decodeErr("yaml", err)
	}
	if doc == nil {
		return nil, nil
	}
	p, err := doc.pattern()
	if err != nil {
		return nil, decodeErr("yaml", err)
	}
	return p, nil
}

func (YAML) Encode(p *types.Pattern) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(p)); err != nil {
		return nil, encodeErr("yaml", err)
	}
	if err := enc.Close(); err != nil {
		return nil, encodeErr("yaml", err)
	}
	return buf.Bytes(), nil
}
