package handler

import (
	"github.com/morezero/valuestore/pkg/persisted"
	"github.com/morezero/valuestore/pkg/typeinfo"
)

// Document is a value of a type known only by name: its persisted data kept
// as is, together with the type it was read as.
type Document struct {
	Type typeinfo.TypeInfo
	Data persisted.Data
}

var _ typeinfo.Described = (*Document)(nil)

// TypeInfo reports the document's type as its runtime type.
func (d *Document) TypeInfo() typeinfo.TypeInfo { return d.Type }

// TreeHandler is the structural handler of a name-only type. It passes the
// persisted data through unchanged and tags it with the bound type.
type TreeHandler struct {
	t typeinfo.TypeInfo
}

var _ Handler = (*TreeHandler)(nil)

// NewTreeHandler creates the pass-through handler bound to t.
func NewTreeHandler(t typeinfo.TypeInfo) *TreeHandler {
	return &TreeHandler{t: t}
}

func (h *TreeHandler) Serialize(value any, s persisted.Serializer) persisted.Data {
	switch v := value.(type) {
	case *Document:
		if v != nil {
			return v.Data
		}
	case Document:
		return v.Data
	case persisted.Data:
		return v
	}
	return s.SerializeNull()
}

func (h *TreeHandler) Deserialize(data persisted.Data) (any, bool) {
	return &Document{Type: h.t, Data: data}, true
}

func (h *TreeHandler) Classification() Classification { return GenericStructural }

func (h *TreeHandler) Implementation() string { return "tree:" + h.t.String() }

// Type returns the type the handler is bound to.
func (h *TreeHandler) Type() typeinfo.TypeInfo { return h.t }
