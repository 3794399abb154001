// Package handler provides the type handlers the dispatcher chooses between,
// and the registry that maps type descriptors to them.
package handler

import (
	"reflect"

	"github.com/morezero/valuestore/pkg/persisted"
)

// Classification tells the dispatcher how much type-specific knowledge a
// handler carries.
type Classification int

const (
	// Custom handlers are written for (or specialized to) a particular type.
	Custom Classification = iota
	// GenericStructural handlers only reflect over a type's declared fields.
	GenericStructural
)

func (c Classification) String() string {
	switch c {
	case Custom:
		return "custom"
	case GenericStructural:
		return "generic-structural"
	default:
		return "unknown"
	}
}

// Handler converts values of one type to and from persisted data.
// Deserialize reports false when no value could be reconstructed.
type Handler interface {
	Serialize(value any, s persisted.Serializer) persisted.Data
	Deserialize(data persisted.Data) (any, bool)
	Classification() Classification
}

// Implementer is implemented by handlers that name their implementation.
// Two handlers with the same implementation name behave identically.
type Implementer interface {
	Implementation() string
}

// SameImplementation reports whether a and b are the same handler
// implementation. Handlers that name their implementation are compared by
// name, others by Go type.
func SameImplementation(a, b Handler) bool {
	if a == nil || b == nil {
		return false
	}
	ai, aok := a.(Implementer)
	bi, bok := b.(Implementer)
	if aok && bok {
		return ai.Implementation() == bi.Implementation()
	}
	if aok != bok {
		return false
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// IsGenericStructural reports whether h is classified GenericStructural.
func IsGenericStructural(h Handler) bool {
	return h != nil && h.Classification() == GenericStructural
}
