// Package persisted provides the generic value tree exchanged between type handlers.
package persisted

import (
	"math"
	"strconv"
)

// Kind identifies the shape of a Data node.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Data is an immutable node of a serialized value tree. The zero value is null.
type Data struct {
	kind  Kind
	text  string // string value, or the decimal text of a number
	b     bool
	items []Data
	m     *ValueMap
}

// Null returns the null node.
func Null() Data {
	return Data{}
}

// String returns a string scalar.
func String(v string) Data {
	return Data{kind: KindString, text: v}
}

// Int returns a signed integer scalar.
func Int(v int64) Data {
	return Data{kind: KindNumber, text: strconv.FormatInt(v, 10)}
}

// Uint returns an unsigned integer scalar.
func Uint(v uint64) Data {
	return Data{kind: KindNumber, text: strconv.FormatUint(v, 10)}
}

// Float returns a floating point scalar. NaN and infinities have no JSON
// number form and are stored as strings ("NaN", "+Inf", "-Inf").
func Float(v float64) Data {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return String(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return Data{kind: KindNumber, text: strconv.FormatFloat(v, 'g', -1, 64)}
}

// Bool returns a boolean scalar.
func Bool(v bool) Data {
	return Data{kind: KindBool, b: v}
}

// Array returns a sequence node. The items slice is copied.
func Array(items ...Data) Data {
	cp := make([]Data, len(items))
	copy(cp, items)
	return Data{kind: KindArray, items: cp}
}

// Map returns a mapping node holding a copy of m.
func Map(m *ValueMap) Data {
	if m == nil {
		m = NewValueMap()
	}
	return Data{kind: KindMap, m: m.clone()}
}

// Entry is a single key/value pair used with MapOf.
type Entry struct {
	Key   string
	Value Data
}

// MapOf returns a mapping node with entries in the given order.
func MapOf(entries ...Entry) Data {
	m := NewValueMap()
	for _, e := range entries {
		m.Put(e.Key, e.Value)
	}
	return Data{kind: KindMap, m: m}
}

// Kind returns the node kind.
func (d Data) Kind() Kind { return d.kind }

func (d Data) IsNull() bool     { return d.kind == KindNull }
func (d Data) IsString() bool   { return d.kind == KindString }
func (d Data) IsNumber() bool   { return d.kind == KindNumber }
func (d Data) IsBool() bool     { return d.kind == KindBool }
func (d Data) IsArray() bool    { return d.kind == KindArray }
func (d Data) IsValueMap() bool { return d.kind == KindMap }

// AsString returns the string value of a string node.
func (d Data) AsString() (string, bool) {
	if d.kind != KindString {
		return "", false
	}
	return d.text, true
}

// NumberText returns the decimal text of a number node.
func (d Data) NumberText() (string, bool) {
	if d.kind != KindNumber {
		return "", false
	}
	return d.text, true
}

// AsInt64 returns the value of a number node that fits an int64.
func (d Data) AsInt64() (int64, bool) {
	if d.kind != KindNumber {
		return 0, false
	}
	v, err := strconv.ParseInt(d.text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(d.text, 64)
		if ferr != nil || f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return v, true
}

// AsUint64 returns the value of a number node that fits a uint64.
func (d Data) AsUint64() (uint64, bool) {
	if d.kind != KindNumber {
		return 0, false
	}
	v, err := strconv.ParseUint(d.text, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// AsFloat64 returns the value of a number node, or of a string node holding
// one of the non-finite forms written by Float.
func (d Data) AsFloat64() (float64, bool) {
	switch d.kind {
	case KindNumber:
		v, err := strconv.ParseFloat(d.text, 64)
		return v, err == nil
	case KindString:
		switch d.text {
		case "NaN", "+Inf", "-Inf":
			v, err := strconv.ParseFloat(d.text, 64)
			return v, err == nil
		}
	}
	return 0, false
}

// AsBool returns the value of a bool node.
func (d Data) AsBool() (bool, bool) {
	if d.kind != KindBool {
		return false, false
	}
	return d.b, true
}

// AsArray returns a copy of the items of an array node.
func (d Data) AsArray() ([]Data, bool) {
	if d.kind != KindArray {
		return nil, false
	}
	cp := make([]Data, len(d.items))
	copy(cp, d.items)
	return cp, true
}

// Len returns the number of items or entries of an array or map node.
func (d Data) Len() int {
	switch d.kind {
	case KindArray:
		return len(d.items)
	case KindMap:
		return d.m.Len()
	}
	return 0
}

// AsValueMap returns the mapping of a map node. The returned map must be
// treated as read-only.
func (d Data) AsValueMap() (*ValueMap, bool) {
	if d.kind != KindMap {
		return nil, false
	}
	return d.m, true
}

// Equal reports whether two trees are structurally equal, including the
// order of map keys.
func Equal(a, b Data) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString, KindNumber:
		return a.text == b.text
	case KindBool:
		return a.b == b.b
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if a.m.Len() != b.m.Len() {
			return false
		}
		for i, k := range a.m.keys {
			if b.m.keys[i] != k {
				return false
			}
			if !Equal(a.m.values[k], b.m.values[k]) {
				return false
			}
		}
		return true
	}
	return false
}

// ValueMap is an insertion-ordered mapping of string keys to Data.
type ValueMap struct {
	keys   []string
	values map[string]Data
}

// NewValueMap returns an empty map.
func NewValueMap() *ValueMap {
	return &ValueMap{values: make(map[string]Data)}
}

// Put sets key to v. Replacing an existing key keeps its position.
func (m *ValueMap) Put(key string, v Data) *ValueMap {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
	return m
}

// Has reports whether key is present.
func (m *ValueMap) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Get returns the value stored under key.
func (m *ValueMap) Get(key string) (Data, bool) {
	if m == nil {
		return Data{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// GetAsString returns the value under key when it is a string node.
func (m *ValueMap) GetAsString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Keys returns the keys in insertion order.
func (m *ValueMap) Keys() []string {
	if m == nil {
		return nil
	}
	cp := make([]string, len(m.keys))
	copy(cp, m.keys)
	return cp
}

// Len returns the number of entries.
func (m *ValueMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *ValueMap) clone() *ValueMap {
	cp := &ValueMap{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]Data, len(m.values)),
	}
	copy(cp.keys, m.keys)
	for k, v := range m.values {
		cp.values[k] = v
	}
	return cp
}
