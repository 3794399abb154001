package handler

import "github.com/morezero/valuestore/pkg/persisted"

// FuncHandler is a custom handler built from a pair of functions. Handlers
// sharing a Name are treated as the same implementation.
type FuncHandler struct {
	Name            string
	SerializeFunc   func(value any, s persisted.Serializer) persisted.Data
	DeserializeFunc func(data persisted.Data) (any, bool)
}

var _ Handler = (*FuncHandler)(nil)

func (h *FuncHandler) Serialize(value any, s persisted.Serializer) persisted.Data {
	if h.SerializeFunc == nil || IsNil(value) {
		return s.SerializeNull()
	}
	return h.SerializeFunc(value, s)
}

func (h *FuncHandler) Deserialize(data persisted.Data) (any, bool) {
	if h.DeserializeFunc == nil {
		return nil, false
	}
	return h.DeserializeFunc(data)
}

func (h *FuncHandler) Classification() Classification { return Custom }

func (h *FuncHandler) Implementation() string { return "func:" + h.Name }

// Func builds a typed FuncHandler. Values that are neither T nor *T
// serialize to null.
func Func[T any](name string, ser func(v T, s persisted.Serializer) persisted.Data, de func(data persisted.Data) (T, bool)) *FuncHandler {
	return &FuncHandler{
		Name: name,
		SerializeFunc: func(value any, s persisted.Serializer) persisted.Data {
			switch v := value.(type) {
			case T:
				return ser(v, s)
			case *T:
				return ser(*v, s)
			}
			return s.SerializeNull()
		},
		DeserializeFunc: func(data persisted.Data) (any, bool) {
			v, ok := de(data)
			if !ok {
				return nil, false
			}
			return v, true
		},
	}
}
