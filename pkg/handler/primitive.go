package handler

import (
	"fmt"
	"reflect"

	"github.com/morezero/valuestore/pkg/persisted"
)

// PrimitiveHandler handles a Go type whose kind is bool, string, an integer
// or a float. Named types (type Celsius float64) are returned as themselves.
type PrimitiveHandler struct {
	rt reflect.Type
}

var _ Handler = (*PrimitiveHandler)(nil)

// NewPrimitive returns the handler for rt.
func NewPrimitive(rt reflect.Type) (*PrimitiveHandler, error) {
	if rt == nil || !isPrimitiveKind(rt.Kind()) {
		return nil, fmt.Errorf("%v is not a primitive type", rt)
	}
	return &PrimitiveHandler{rt: rt}, nil
}

// PrimitiveFor returns the handler for T and panics when T is not primitive.
func PrimitiveFor[T any]() *PrimitiveHandler {
	h, err := NewPrimitive(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		panic(err)
	}
	return h
}

func isPrimitiveKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (h *PrimitiveHandler) Serialize(value any, s persisted.Serializer) persisted.Data {
	v, ok := indirect(value)
	if !ok {
		return s.SerializeNull()
	}
	switch v.Kind() {
	case reflect.Bool:
		return s.SerializeBool(v.Bool())
	case reflect.String:
		return s.SerializeString(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return s.SerializeInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return s.SerializeUint(v.Uint())
	case reflect.Float32, reflect.Float64:
		return s.SerializeFloat(v.Float())
	}
	return s.SerializeNull()
}

func (h *PrimitiveHandler) Deserialize(data persisted.Data) (any, bool) {
	out := reflect.New(h.rt).Elem()
	switch h.rt.Kind() {
	case reflect.Bool:
		b, ok := data.AsBool()
		if !ok {
			return nil, false
		}
		out.SetBool(b)
	case reflect.String:
		str, ok := data.AsString()
		if !ok {
			return nil, false
		}
		out.SetString(str)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := data.AsInt64()
		if !ok || out.OverflowInt(n) {
			return nil, false
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := data.AsUint64()
		if !ok || out.OverflowUint(n) {
			return nil, false
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, ok := data.AsFloat64()
		if !ok {
			return nil, false
		}
		out.SetFloat(f)
	default:
		return nil, false
	}
	return out.Interface(), true
}

func (h *PrimitiveHandler) Classification() Classification { return Custom }

func (h *PrimitiveHandler) Implementation() string { return "primitive:" + h.rt.String() }

// Type returns the Go type the handler produces.
func (h *PrimitiveHandler) Type() reflect.Type { return h.rt }
