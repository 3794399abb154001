// Package dispatcher serializes values whose runtime type may be more
// specific than their declared type. When the handler chosen for the runtime
// type is not the declared type's own handler, the output is wrapped in a
// two-field envelope naming the runtime type, so it can be read back as that
// type.
package dispatcher

import (
	"fmt"

	"github.com/morezero/valuestore/pkg/handler"
	"github.com/morezero/valuestore/pkg/persisted"
	"github.com/morezero/valuestore/pkg/typeinfo"
)

const logPrefix = "dispatcher:dispatcher"

// HandlerRegistry finds the handler registered for a type. It must be safe
// for concurrent reads.
type HandlerRegistry interface {
	Lookup(t typeinfo.TypeInfo) (handler.Handler, bool)
}

// TypeResolver answers the type questions the dispatcher asks. It must be
// safe for concurrent reads.
type TypeResolver interface {
	// ResolveByName finds the type a persisted type tag names, looking among
	// the subtypes of within. Absence means unknown, not an error.
	ResolveByName(name string, within typeinfo.TypeInfo) (typeinfo.TypeInfo, bool)
	// RuntimeType returns the concrete type of a non-nil value.
	RuntimeType(value any) typeinfo.TypeInfo
	// IsAssignable reports whether sub is super or a subtype of it.
	IsAssignable(sub, super typeinfo.TypeInfo) bool
}

// Fields names the two envelope keys. Changing them breaks reading data
// written under the old names.
type Fields struct {
	Type  string
	Value string
}

var (
	// DefaultFields are the envelope keys written by this module.
	DefaultFields = Fields{Type: "@type", Value: "@value"}
	// LegacyFields are the envelope keys of data written by the original
	// engine.
	LegacyFields = Fields{Type: "class", Value: "content"}
)

// Validate checks that both names are set and distinct.
func (f Fields) Validate() error {
	if f.Type == "" || f.Value == "" {
		return fmt.Errorf("%s - envelope field names must not be empty", logPrefix)
	}
	if f.Type == f.Value {
		return fmt.Errorf("%s - envelope field names must differ, both are %q", logPrefix, f.Type)
	}
	return nil
}

// NewDispatcherParams holds the references a dispatcher captures.
type NewDispatcherParams struct {
	Declared typeinfo.TypeInfo
	// Delegate is the handler bound to Declared; nil when none is registered.
	Delegate handler.Handler
	Registry HandlerRegistry
	Resolver TypeResolver
	// Fields defaults to DefaultFields.
	Fields Fields
	// Sink defaults to LogSink.
	Sink Sink
}

// Dispatcher is bound to one declared type. It holds no mutable state, so a
// single instance may serve concurrent calls.
type Dispatcher struct {
	declared typeinfo.TypeInfo
	delegate handler.Handler
	registry HandlerRegistry
	resolver TypeResolver
	fields   Fields
	sink     Sink
}

var (
	_ handler.Handler     = (*Dispatcher)(nil)
	_ handler.Implementer = (*Dispatcher)(nil)
)

// NewDispatcher creates a dispatcher. Registry and Resolver are required.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	fields := params.Fields
	if fields.Type == "" && fields.Value == "" {
		fields = DefaultFields
	}
	sink := params.Sink
	if sink == nil {
		sink = LogSink{}
	}
	return &Dispatcher{
		declared: params.Declared,
		delegate: params.Delegate,
		registry: params.Registry,
		resolver: params.Resolver,
		fields:   fields,
		sink:     sink,
	}
}

// WithSink returns a copy of d reporting to sink.
func (d *Dispatcher) WithSink(sink Sink) *Dispatcher {
	cp := *d
	if sink == nil {
		sink = LogSink{}
	}
	cp.sink = sink
	return &cp
}

// Declared returns the declared type.
func (d *Dispatcher) Declared() typeinfo.TypeInfo { return d.declared }

// Delegate returns the handler bound to the declared type, or nil.
func (d *Dispatcher) Delegate() handler.Handler { return d.delegate }

// Fields returns the envelope field names.
func (d *Dispatcher) Fields() Fields { return d.fields }

// Serialize writes value with the handler chosen for its runtime type. It
// never fails: when no handler can be found, a diagnostic is reported and
// null is returned.
func (d *Dispatcher) Serialize(value any, s persisted.Serializer) persisted.Data {
	if handler.IsNil(value) {
		return s.SerializeNull()
	}

	if d.declared.IsPrimitive() {
		if d.delegate != nil {
			return d.delegate.Serialize(value, s)
		}
		d.report(OutcomeFailed, CodeMissingPrimitiveHandler, "",
			fmt.Sprintf("Primitive %s does not have a handler", d.declared))
		return s.SerializeNull()
	}

	runtime := d.runtimeTypeIfMoreSpecific(value)

	chosen, isDelegate := d.delegate, true
	if !runtime.SameRaw(d.declared) {
		chosen, isDelegate = d.chooseHandler(runtime)
	}
	if chosen == nil {
		d.report(OutcomeFailed, CodeNoHandler, runtime.Name(),
			fmt.Sprintf("Could not find an appropriate handler for runtime type %s", runtime))
		return s.SerializeNull()
	}
	if isDelegate {
		return chosen.Serialize(value, s)
	}

	if _, ok := d.resolver.ResolveByName(runtime.Name(), d.declared); !ok {
		d.report(OutcomeDegraded, CodeUnresolvableType, runtime.Name(),
			fmt.Sprintf("Runtime type %s is not in the catalog, its type tag cannot be read back", runtime))
	}

	m := persisted.NewValueMap()
	m.Put(d.fields.Type, s.SerializeString(runtime.Name()))
	m.Put(d.fields.Value, chosen.Serialize(value, s))
	return s.SerializeMap(m)
}

// runtimeTypeIfMoreSpecific returns the type whose handler should be
// considered for value. Parameterized declared types keep their declared raw
// type unless there is no delegate to fall back on.
func (d *Dispatcher) runtimeTypeIfMoreSpecific(value any) typeinfo.TypeInfo {
	switch {
	case d.declared.IsInterface(), d.declared.Kind() == typeinfo.Class:
	case d.declared.IsParameterized() && d.delegate == nil:
	default:
		return d.declared.Raw()
	}
	runtime := d.resolver.RuntimeType(value)
	if runtime.IsZero() {
		return d.declared.Raw()
	}
	return runtime
}

// chooseHandler applies the tie-break between the runtime type's handler and
// the delegate. isDelegate reports whether the delegate won.
func (d *Dispatcher) chooseHandler(runtime typeinfo.TypeInfo) (h handler.Handler, isDelegate bool) {
	found, ok := d.registry.Lookup(runtime)
	switch {
	case !ok || found == nil:
		return d.delegate, true
	case d.delegate == nil:
		return found, false
	case handler.SameImplementation(found, d.delegate):
		return d.delegate, true
	case !handler.IsGenericStructural(found):
		return found, false
	case !handler.IsGenericStructural(d.delegate):
		return d.delegate, true
	default:
		return found, false
	}
}

// Deserialize reads data written by Serialize. Envelopes are resolved to the
// type they name; anything else goes to the delegate. It reports false when
// no value could be reconstructed; the reason is reported to the sink.
func (d *Dispatcher) Deserialize(data persisted.Data) (any, bool) {
	m, ok := data.AsValueMap()
	if !ok || !m.Has(d.fields.Type) || !m.Has(d.fields.Value) {
		return d.deserializeWithDelegate(data)
	}

	name, ok := m.GetAsString(d.fields.Type)
	if !ok {
		d.report(OutcomeFailed, CodeUnresolvableType, "",
			fmt.Sprintf("Type field %q is not a string", d.fields.Type))
		return nil, false
	}

	concrete, ok := d.resolver.ResolveByName(name, d.declared)
	if !ok {
		d.report(OutcomeFailed, CodeUnresolvableType, name,
			fmt.Sprintf("Cannot find type to deserialize %s", name))
		return nil, false
	}
	if !d.resolver.IsAssignable(concrete, d.declared) {
		d.report(OutcomeFailed, CodeTypeConfusion, concrete.Name(),
			fmt.Sprintf("Given type %s is not a sub-type of expected type %s", concrete, d.declared))
		return nil, false
	}

	payload, _ := m.Get(d.fields.Value)

	h, ok := d.registry.Lookup(concrete)
	if !ok || h == nil {
		d.report(OutcomeDegraded, CodeMissingResolvedHandler, concrete.Name(),
			fmt.Sprintf("Cannot find handler for runtime type %s, deserializing as base type %s", concrete, d.declared))
		return d.deserializeWithDelegate(payload)
	}
	return h.Deserialize(payload)
}

func (d *Dispatcher) deserializeWithDelegate(data persisted.Data) (any, bool) {
	if d.delegate == nil {
		d.report(OutcomeFailed, CodeNoHandler, "",
			fmt.Sprintf("No handler bound to declared type %s", d.declared))
		return nil, false
	}
	return d.delegate.Deserialize(data)
}

func (d *Dispatcher) report(outcome Outcome, code Code, typeName, message string) {
	d.sink.Report(Diagnostic{
		Outcome:      outcome,
		Code:         code,
		Message:      message,
		DeclaredType: d.declared.String(),
		TypeName:     typeName,
	})
}

// Classification is Custom: a dispatcher knows the type hierarchy below its
// declared type.
func (d *Dispatcher) Classification() handler.Classification { return handler.Custom }

func (d *Dispatcher) Implementation() string { return "dispatcher:" + d.declared.String() }
