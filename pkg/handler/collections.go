package handler

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/morezero/valuestore/pkg/persisted"
)

// elemResolver resolves one element handler lazily.
type elemResolver struct {
	rt       reflect.Type
	resolver FieldResolver
	once     sync.Once
	h        Handler
	err      error
}

func (e *elemResolver) get() (Handler, error) {
	e.once.Do(func() {
		e.h, e.err = e.resolver.FieldHandler(e.rt)
	})
	return e.h, e.err
}

// ListHandler persists slices and arrays as sequences.
type ListHandler struct {
	rt   reflect.Type
	elem *elemResolver
}

var _ Handler = (*ListHandler)(nil)

// NewListHandler creates the handler for a slice or array type.
func NewListHandler(rt reflect.Type, resolver FieldResolver) (*ListHandler, error) {
	if rt == nil || (rt.Kind() != reflect.Slice && rt.Kind() != reflect.Array) {
		return nil, fmt.Errorf("handler: %v is not a slice or array", rt)
	}
	if resolver == nil {
		return nil, fmt.Errorf("handler: %v: a field resolver is required", rt)
	}
	return &ListHandler{rt: rt, elem: &elemResolver{rt: rt.Elem(), resolver: resolver}}, nil
}

func (h *ListHandler) Serialize(value any, s persisted.Serializer) persisted.Data {
	v, ok := indirect(value)
	if !ok || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return s.SerializeNull()
	}
	if v.Kind() == reflect.Slice && v.IsNil() {
		return s.SerializeNull()
	}
	eh, err := h.elem.get()
	if err != nil {
		return s.SerializeNull()
	}
	items := make([]persisted.Data, v.Len())
	for i := range items {
		items[i] = eh.Serialize(v.Index(i).Interface(), s)
	}
	return s.SerializeArray(items)
}

// Deserialize rebuilds the list. Elements that fail to deserialize are left
// at their zero value; arrays ignore surplus items.
func (h *ListHandler) Deserialize(data persisted.Data) (any, bool) {
	items, ok := data.AsArray()
	if !ok {
		return nil, false
	}
	eh, err := h.elem.get()
	if err != nil {
		return nil, false
	}

	var out reflect.Value
	if h.rt.Kind() == reflect.Array {
		out = reflect.New(h.rt).Elem()
	} else {
		out = reflect.MakeSlice(h.rt, len(items), len(items))
	}
	for i, item := range items {
		if i >= out.Len() {
			break
		}
		if item.IsNull() {
			continue
		}
		val, ok := eh.Deserialize(item)
		if !ok {
			continue
		}
		Assign(out.Index(i), val)
	}
	return out.Interface(), true
}

func (h *ListHandler) Classification() Classification { return GenericStructural }

func (h *ListHandler) Implementation() string { return "list:" + h.rt.String() }

// MapHandler persists maps with string keys as mappings, keys sorted.
type MapHandler struct {
	rt   reflect.Type
	elem *elemResolver
}

var _ Handler = (*MapHandler)(nil)

// NewMapHandler creates the handler for a map type whose key kind is string.
func NewMapHandler(rt reflect.Type, resolver FieldResolver) (*MapHandler, error) {
	if rt == nil || rt.Kind() != reflect.Map || rt.Key().Kind() != reflect.String {
		return nil, fmt.Errorf("handler: %v is not a string-keyed map", rt)
	}
	if resolver == nil {
		return nil, fmt.Errorf("handler: %v: a field resolver is required", rt)
	}
	return &MapHandler{rt: rt, elem: &elemResolver{rt: rt.Elem(), resolver: resolver}}, nil
}

func (h *MapHandler) Serialize(value any, s persisted.Serializer) persisted.Data {
	v, ok := indirect(value)
	if !ok || v.Kind() != reflect.Map {
		return s.SerializeNull()
	}
	eh, err := h.elem.get()
	if err != nil {
		return s.SerializeNull()
	}

	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	m := persisted.NewValueMap()
	for _, k := range keys {
		kv := reflect.ValueOf(k).Convert(h.rt.Key())
		m.Put(k, eh.Serialize(v.MapIndex(kv).Interface(), s))
	}
	return s.SerializeMap(m)
}

func (h *MapHandler) Deserialize(data persisted.Data) (any, bool) {
	m, ok := data.AsValueMap()
	if !ok {
		return nil, false
	}
	eh, err := h.elem.get()
	if err != nil {
		return nil, false
	}

	out := reflect.MakeMapWithSize(h.rt, m.Len())
	for _, k := range m.Keys() {
		item, _ := m.Get(k)
		ev := reflect.New(h.rt.Elem()).Elem()
		if !item.IsNull() {
			val, ok := eh.Deserialize(item)
			if !ok {
				continue
			}
			if !Assign(ev, val) {
				continue
			}
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(h.rt.Key()), ev)
	}
	return out.Interface(), true
}

func (h *MapHandler) Classification() Classification { return GenericStructural }

func (h *MapHandler) Implementation() string { return "map:" + h.rt.String() }

// PointerHandler adapts the handler of T to *T.
type PointerHandler struct {
	rt   reflect.Type
	elem Handler
}

var _ Handler = (*PointerHandler)(nil)

// NewPointerHandler wraps elem, the handler of rt.Elem().
func NewPointerHandler(rt reflect.Type, elem Handler) (*PointerHandler, error) {
	if rt == nil || rt.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("handler: %v is not a pointer type", rt)
	}
	if elem == nil {
		return nil, fmt.Errorf("handler: %v: element handler is required", rt)
	}
	return &PointerHandler{rt: rt, elem: elem}, nil
}

func (h *PointerHandler) Serialize(value any, s persisted.Serializer) persisted.Data {
	if IsNil(value) {
		return s.SerializeNull()
	}
	return h.elem.Serialize(value, s)
}

func (h *PointerHandler) Deserialize(data persisted.Data) (any, bool) {
	val, ok := h.elem.Deserialize(data)
	if !ok {
		return nil, false
	}
	out := reflect.New(h.rt).Elem()
	if !Assign(out, val) {
		return nil, false
	}
	return out.Interface(), true
}

func (h *PointerHandler) Classification() Classification { return h.elem.Classification() }

func (h *PointerHandler) Implementation() string { return "pointer:" + h.rt.String() }
