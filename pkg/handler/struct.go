package handler

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/morezero/valuestore/pkg/persisted"
	"github.com/morezero/valuestore/pkg/typeinfo"
)

const structLogPrefix = "handler:struct"

// FieldResolver supplies the handler used for a field, element or map value
// of the given Go type.
type FieldResolver interface {
	FieldHandler(rt reflect.Type) (Handler, error)
}

// StructHandler is the generic structural handler: it persists a struct as a
// mapping of its fields, each serialized by the handler the resolver supplies.
// Field handlers are resolved on first use so self-referencing types work.
type StructHandler struct {
	rt       reflect.Type // struct, or pointer to struct
	meta     *StructMetadata
	resolver FieldResolver

	once     sync.Once
	fields   []Handler
	fieldErr error
}

var _ Handler = (*StructHandler)(nil)

// NewStructHandler creates the structural handler for rt, a struct type or a
// pointer to one. Deserialize returns a value of exactly rt.
func NewStructHandler(rt reflect.Type, resolver FieldResolver) (*StructHandler, error) {
	meta, err := GetStructMetadata(rt)
	if err != nil {
		return nil, fmt.Errorf("%s - %v: %w", structLogPrefix, rt, err)
	}
	if rt.Kind() == reflect.Pointer && rt.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s - %v: %w", structLogPrefix, rt, ErrNotStruct)
	}
	if resolver == nil {
		return nil, fmt.Errorf("%s - %v: a field resolver is required", structLogPrefix, rt)
	}
	return &StructHandler{rt: rt, meta: meta, resolver: resolver}, nil
}

func (h *StructHandler) resolveFields() error {
	h.once.Do(func() {
		fields := make([]Handler, len(h.meta.Fields))
		for i, f := range h.meta.Fields {
			fh, err := h.resolver.FieldHandler(f.Type)
			if err != nil {
				h.fieldErr = fmt.Errorf("%s - field %s.%s: %w", structLogPrefix, h.meta.Type, f.Name, err)
				slog.Error(h.fieldErr.Error())
				return
			}
			fields[i] = fh
		}
		h.fields = fields
	})
	return h.fieldErr
}

func (h *StructHandler) Serialize(value any, s persisted.Serializer) persisted.Data {
	v, ok := indirect(value)
	if !ok || v.Type() != h.meta.Type {
		return s.SerializeNull()
	}
	if err := h.resolveFields(); err != nil {
		return s.SerializeNull()
	}

	m := persisted.NewValueMap()
	for i, f := range h.meta.Fields {
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			continue
		}
		if f.OmitEmpty && fv.IsZero() {
			continue
		}
		m.Put(f.PersistName, h.fields[i].Serialize(fv.Interface(), s))
	}
	return s.SerializeMap(m)
}

// Deserialize rebuilds the struct from a mapping. Missing keys, nulls and
// fields that fail to deserialize are left at their zero value; unknown keys
// are ignored.
func (h *StructHandler) Deserialize(data persisted.Data) (any, bool) {
	m, ok := data.AsValueMap()
	if !ok {
		return nil, false
	}
	if err := h.resolveFields(); err != nil {
		return nil, false
	}

	ptr := reflect.New(h.meta.Type)
	out := ptr.Elem()
	for i, f := range h.meta.Fields {
		fd, ok := m.Get(f.PersistName)
		if !ok || fd.IsNull() {
			continue
		}
		val, ok := h.fields[i].Deserialize(fd)
		if !ok {
			slog.Debug(fmt.Sprintf("%s - field %s.%s could not be deserialized", structLogPrefix, h.meta.Type, f.Name))
			continue
		}
		fv, err := out.FieldByIndexErr(f.Index)
		if err != nil || !fv.CanSet() {
			continue
		}
		if !Assign(fv, val) {
			slog.Debug(fmt.Sprintf("%s - field %s.%s: cannot assign %T", structLogPrefix, h.meta.Type, f.Name, val))
		}
	}

	if h.rt.Kind() == reflect.Pointer {
		return ptr.Interface(), true
	}
	return out.Interface(), true
}

func (h *StructHandler) Classification() Classification { return GenericStructural }

func (h *StructHandler) Implementation() string {
	return "struct:" + typeinfo.DefaultName(h.meta.Type)
}

// Metadata returns the field layout the handler persists.
func (h *StructHandler) Metadata() *StructMetadata { return h.meta }
