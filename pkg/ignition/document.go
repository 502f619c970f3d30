package ignition

import (
	"bytes"
	"encoding/json"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/internal/hashutil"
)

// Document is one compiled Ignition config.
type Document struct {
	// Source names the fragment the document was compiled from.
	Source string
	Tree   map[string]any
	Raw    []byte
}

// Parse decodes raw Ignition JSON. The top level must be an object.
func Parse(source string, raw []byte) (Document, error) {
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return Document{}, errors.Wrapf(err, errors.ErrCompile, "%s did not compile to a JSON object", source).
			WithDetail("source", source)
	}
	if tree == nil {
		return Document{}, errors.Newf(errors.ErrCompile, "%s compiled to an empty document", source).
			WithDetail("source", source)
	}
	return Document{Source: source, Tree: tree, Raw: raw}, nil
}

// Version returns ignition.version, or "" when it is absent.
func (d Document) Version() string {
	ign, ok := d.Tree["ignition"].(map[string]any)
	if !ok {
		return ""
	}
	v, _ := ign["version"].(string)
	return v
}

// Merged is the final document. Bytes is canonical JSON and is what gets
// transferred; it must not be modified.
type Merged struct {
	Document
}

// Bytes returns the canonical encoding.
func (m Merged) Bytes() []byte { return m.Raw }

// Checksum returns "sha256:<hex>" over Bytes.
func (m Merged) Checksum() string {
	return hashutil.CalculateChecksum(m.Raw)
}

// canonical encodes tree with sorted keys and no HTML escaping.
func canonical(tree map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
