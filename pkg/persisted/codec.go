package persisted

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"sigs.k8s.io/yaml"
)

const logPrefix = "persisted:codec"

var (
	_ json.Marshaler   = Data{}
	_ json.Unmarshaler = (*Data)(nil)
)

// MarshalJSON writes the tree as JSON, keeping map keys in insertion order.
func (d Data) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, d Data) error {
	switch d.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		if err := writeString(buf, d.text); err != nil {
			return err
		}
	case KindNumber:
		buf.WriteString(d.text)
	case KindBool:
		if d.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindArray:
		buf.WriteByte('[')
		for i, item := range d.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, key := range d.m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, d.m.values[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%s - unknown data kind %d", logPrefix, d.kind)
	}
	return nil
}

// writeString quotes s without HTML escaping so stored text keeps the
// caller's characters.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// UnmarshalJSON parses JSON into the tree, keeping object key order.
func (d *Data) UnmarshalJSON(b []byte) error {
	parsed, err := Parse(b)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Parse decodes a single JSON document.
func Parse(b []byte) (Data, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	d, err := decodeValue(dec)
	if err != nil {
		return Data{}, fmt.Errorf("%s - failed to parse: %w", logPrefix, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Data{}, fmt.Errorf("%s - trailing data after document", logPrefix)
	}
	return d, nil
}

func decodeValue(dec *json.Decoder) (Data, error) {
	tok, err := dec.Token()
	if err != nil {
		return Data{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewValueMap()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Data{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Data{}, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return Data{}, err
				}
				m.Put(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return Data{}, err
			}
			return Data{kind: KindMap, m: m}, nil
		case '[':
			var items []Data
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return Data{}, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return Data{}, err
			}
			return Data{kind: KindArray, items: items}, nil
		}
		return Data{}, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return String(t), nil
	case json.Number:
		return Data{kind: KindNumber, text: t.String()}, nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	}
	return Data{}, fmt.Errorf("unexpected token %v", tok)
}

// Canonical returns the RFC 8785 canonical JSON form of the tree. Two trees
// that differ only in map key order have the same canonical form.
func Canonical(d Data) ([]byte, error) {
	raw, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("%s - could not canonicalize data: %w", logPrefix, err)
	}
	return out, nil
}

// ToYAML renders the tree as YAML. Map keys are emitted sorted.
func ToYAML(d Data) ([]byte, error) {
	raw, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out, err := yaml.JSONToYAML(raw)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to convert to yaml: %w", logPrefix, err)
	}
	return out, nil
}

// FromYAML parses a YAML (or JSON) document.
func FromYAML(b []byte) (Data, error) {
	raw, err := yaml.YAMLToJSON(b)
	if err != nil {
		return Data{}, fmt.Errorf("%s - failed to convert yaml: %w", logPrefix, err)
	}
	return Parse(raw)
}
