// Package typeinfo describes the declared and runtime types handled by the dispatcher.
package typeinfo

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind classifies a type for dispatch purposes.
type Kind int

const (
	// Invalid is the kind of the zero TypeInfo.
	Invalid Kind = iota
	// Primitive types have no subtype hierarchy.
	Primitive
	// Class is a simple concrete, non-parameterized type.
	Class
	// Interface types carry no serializable state of their own.
	Interface
	// Parameterized types carry argument information the runtime type alone cannot reconstruct.
	Parameterized
)

func (k Kind) String() string {
	switch k {
	case Primitive:
		return "primitive"
	case Class:
		return "class"
	case Interface:
		return "interface"
	case Parameterized:
		return "parameterized"
	default:
		return "invalid"
	}
}

// ParseKind parses the textual form returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primitive":
		return Primitive, nil
	case "class", "":
		return Class, nil
	case "interface":
		return Interface, nil
	case "parameterized":
		return Parameterized, nil
	}
	return Invalid, fmt.Errorf("unknown type kind %q", s)
}

// TypeInfo is an immutable type descriptor. Types known only by name (for
// example from a catalog manifest) have no reflect.Type.
type TypeInfo struct {
	name string
	kind Kind
	rt   reflect.Type
	args []TypeInfo
}

// Described is implemented by values that know their own runtime type.
type Described interface {
	TypeInfo() TypeInfo
}

// Of describes T under the given fully qualified name. An empty name derives
// one from T's package path.
func Of[T any](name string) TypeInfo {
	return ForReflect(reflect.TypeOf((*T)(nil)).Elem(), name)
}

// ForReflect describes rt under the given fully qualified name.
func ForReflect(rt reflect.Type, name string) TypeInfo {
	if name == "" {
		name = DefaultName(rt)
	}
	return TypeInfo{name: name, kind: kindOf(rt), rt: rt}
}

// Named describes a type that is known only by name.
func Named(name string, kind Kind) TypeInfo {
	return TypeInfo{name: name, kind: kind}
}

// NewParameterized describes base applied to args.
func NewParameterized(base TypeInfo, args ...TypeInfo) TypeInfo {
	cp := make([]TypeInfo, len(args))
	copy(cp, args)
	return TypeInfo{name: base.name, kind: Parameterized, rt: base.rt, args: cp}
}

// DefaultName returns "<package path>.<type name>" for named types and the
// Go type string otherwise. Pointers are described by their element.
func DefaultName(rt reflect.Type) string {
	if rt == nil {
		return ""
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Name() != "" && rt.PkgPath() != "" {
		return rt.PkgPath() + "." + rt.Name()
	}
	return rt.String()
}

func kindOf(rt reflect.Type) Kind {
	if rt == nil {
		return Invalid
	}
	switch rt.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return Primitive
	case reflect.Interface:
		return Interface
	case reflect.Slice, reflect.Array, reflect.Map:
		if rt.Name() == "" {
			return Parameterized
		}
		return Class
	default:
		return Class
	}
}

// Name returns the fully qualified name of the raw type.
func (t TypeInfo) Name() string { return t.name }

// SimpleName returns the last dot-separated segment of the name.
func (t TypeInfo) SimpleName() string {
	if i := strings.LastIndex(t.name, "."); i >= 0 {
		return t.name[i+1:]
	}
	return t.name
}

// Kind returns the dispatch kind.
func (t TypeInfo) Kind() Kind { return t.kind }

// Reflect returns the Go type, or nil for name-only types.
func (t TypeInfo) Reflect() reflect.Type { return t.rt }

// Args returns the type arguments of a parameterized type.
func (t TypeInfo) Args() []TypeInfo {
	cp := make([]TypeInfo, len(t.args))
	copy(cp, t.args)
	return cp
}

func (t TypeInfo) IsPrimitive() bool     { return t.kind == Primitive }
func (t TypeInfo) IsInterface() bool     { return t.kind == Interface }
func (t TypeInfo) IsParameterized() bool { return t.kind == Parameterized }
func (t TypeInfo) IsZero() bool          { return t.name == "" && t.kind == Invalid }

// Raw returns the erased type: parameterized types lose their arguments and
// become classes.
func (t TypeInfo) Raw() TypeInfo {
	if t.kind != Parameterized {
		return t
	}
	kind := Class
	if t.rt != nil {
		kind = kindOf(t.rt)
		if kind == Parameterized {
			kind = Class
		}
	}
	return TypeInfo{name: t.name, kind: kind, rt: t.rt}
}

// SameRaw reports whether both descriptors have the same raw type.
func (t TypeInfo) SameRaw(other TypeInfo) bool {
	return t.name == other.name
}

// Equal reports whether both descriptors describe the same type, including
// type arguments.
func (t TypeInfo) Equal(other TypeInfo) bool {
	return t.String() == other.String()
}

// String returns the name, followed by the type arguments when present.
func (t TypeInfo) String() string {
	if len(t.args) == 0 {
		return t.name
	}
	parts := make([]string, len(t.args))
	for i, a := range t.args {
		parts[i] = a.String()
	}
	return t.name + "[" + strings.Join(parts, ",") + "]"
}
