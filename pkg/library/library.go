// Package library ties the type catalog and the handler registry together.
// It builds structural handlers for Go types on demand and hands out the
// dispatchers that serialize values of a declared type.
package library

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/morezero/valuestore/pkg/catalog"
	"github.com/morezero/valuestore/pkg/dispatcher"
	"github.com/morezero/valuestore/pkg/handler"
	"github.com/morezero/valuestore/pkg/persisted"
	"github.com/morezero/valuestore/pkg/typeinfo"
)

const logPrefix = "library:library"

// Option configures a Library.
type Option func(*Library)

// WithCatalog uses c instead of a new, empty catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(l *Library) {
		l.catalog = c
	}
}

// WithFields sets the envelope field names of every dispatcher.
func WithFields(f dispatcher.Fields) Option {
	return func(l *Library) {
		l.fields = f
	}
}

// WithSink sets where dispatchers report diagnostics.
func WithSink(s dispatcher.Sink) Option {
	return func(l *Library) {
		l.sink = s
	}
}

// Library is the handler registry used by dispatchers. Handlers registered
// explicitly take precedence; Go types without one get a structural handler
// built on first use.
type Library struct {
	catalog *catalog.Catalog
	static  *handler.Registry
	fields  dispatcher.Fields
	sink    dispatcher.Sink
	ser     persisted.DefaultSerializer

	mu          sync.RWMutex
	derived     map[reflect.Type]handler.Handler
	dispatchers map[string]*dispatcher.Dispatcher
}

var (
	_ dispatcher.HandlerRegistry = (*Library)(nil)
	_ handler.FieldResolver      = (*Library)(nil)
)

var builtinPrimitives = []reflect.Type{
	reflect.TypeOf(""), reflect.TypeOf(false),
	reflect.TypeOf(int(0)), reflect.TypeOf(int8(0)), reflect.TypeOf(int16(0)), reflect.TypeOf(int32(0)), reflect.TypeOf(int64(0)),
	reflect.TypeOf(uint(0)), reflect.TypeOf(uint8(0)), reflect.TypeOf(uint16(0)), reflect.TypeOf(uint32(0)), reflect.TypeOf(uint64(0)),
	reflect.TypeOf(float32(0)), reflect.TypeOf(float64(0)),
}

// New creates a library with handlers for the built-in primitive types.
func New(opts ...Option) *Library {
	l := &Library{
		static:      handler.NewRegistry(),
		fields:      dispatcher.DefaultFields,
		sink:        dispatcher.LogSink{},
		derived:     make(map[reflect.Type]handler.Handler),
		dispatchers: make(map[string]*dispatcher.Dispatcher),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.catalog == nil {
		l.catalog = catalog.New()
	}

	for _, rt := range builtinPrimitives {
		info := typeinfo.ForReflect(rt, "")
		if err := l.catalog.Register(info); err != nil {
			slog.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
			continue
		}
		h, _ := handler.NewPrimitive(rt)
		if err := l.static.Register(info, h); err != nil {
			slog.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
		}
	}
	return l
}

// Catalog returns the type catalog.
func (l *Library) Catalog() *catalog.Catalog { return l.catalog }

// Fields returns the envelope field names used by the library's dispatchers.
func (l *Library) Fields() dispatcher.Fields { return l.fields }

// Register adds T to the catalog under name, with the given supertypes, and
// binds h to it. A nil h leaves T to the structural handler.
func Register[T any](l *Library, name string, h handler.Handler, supertypes ...typeinfo.TypeInfo) (typeinfo.TypeInfo, error) {
	info := typeinfo.Of[T](name)
	if err := l.catalog.Register(info, supertypes...); err != nil {
		return typeinfo.TypeInfo{}, err
	}
	if h != nil {
		if err := l.RegisterHandler(info, h); err != nil {
			return typeinfo.TypeInfo{}, err
		}
	}
	registered, _ := l.catalog.Lookup(info.Name())
	return registered, nil
}

// MustRegister is Register that panics on error.
func MustRegister[T any](l *Library, name string, h handler.Handler, supertypes ...typeinfo.TypeInfo) typeinfo.TypeInfo {
	info, err := Register[T](l, name, h, supertypes...)
	if err != nil {
		panic(err)
	}
	return info
}

// RegisterHandler binds h to t. Dispatchers and structural handlers built
// before the call are dropped so later lookups see h.
func (l *Library) RegisterHandler(t typeinfo.TypeInfo, h handler.Handler) error {
	if err := l.static.Register(t, h); err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	l.resetCaches()
	return nil
}

func (l *Library) resetCaches() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.derived = make(map[reflect.Type]handler.Handler)
	l.dispatchers = make(map[string]*dispatcher.Dispatcher)
}

// Lookup returns the handler for t: the registered one, or for Go types a
// structural handler built on demand. Interfaces have no handler.
func (l *Library) Lookup(t typeinfo.TypeInfo) (handler.Handler, bool) {
	if h, ok := l.static.Lookup(t); ok {
		return h, true
	}
	rt := t.Reflect()
	if rt == nil || t.IsInterface() {
		return nil, false
	}
	h, err := l.derive(rt)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - no handler for %s: %v", logPrefix, t, err))
		return nil, false
	}
	return h, true
}

// HandlerFor returns the handler for a Go type.
func (l *Library) HandlerFor(rt reflect.Type) (handler.Handler, error) {
	info := l.typeOf(rt)
	if h, ok := l.static.Lookup(info); ok && info.Reflect() == rt {
		return h, nil
	}
	return l.derive(rt)
}

func (l *Library) derive(rt reflect.Type) (handler.Handler, error) {
	l.mu.RLock()
	h, ok := l.derived[rt]
	l.mu.RUnlock()
	if ok {
		return h, nil
	}

	h, err := l.build(rt)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.derived[rt]; ok {
		return existing, nil
	}
	l.derived[rt] = h
	return h, nil
}

func (l *Library) build(rt reflect.Type) (handler.Handler, error) {
	switch rt.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return handler.NewPrimitive(rt)
	case reflect.Pointer:
		elem, err := l.HandlerFor(rt.Elem())
		if err != nil {
			return nil, err
		}
		return handler.NewPointerHandler(rt, elem)
	case reflect.Struct:
		return handler.NewStructHandler(rt, l)
	case reflect.Slice, reflect.Array:
		return handler.NewListHandler(rt, l)
	case reflect.Map:
		return handler.NewMapHandler(rt, l)
	}
	return nil, fmt.Errorf("%s - cannot build a handler for %v", logPrefix, rt)
}

// FieldHandler returns the handler for a struct field, list element or map
// value: primitives are handled directly, everything else through a
// dispatcher so subtypes survive.
func (l *Library) FieldHandler(rt reflect.Type) (handler.Handler, error) {
	info := l.typeOf(rt)
	if info.IsPrimitive() {
		return l.HandlerFor(rt)
	}
	d := l.dispatcherFor(info, rt)
	if d.Delegate() == nil && !info.IsInterface() {
		return nil, fmt.Errorf("%s - no handler for field type %v", logPrefix, rt)
	}
	return d, nil
}

// DispatcherFor returns the dispatcher for a declared type.
func (l *Library) DispatcherFor(t typeinfo.TypeInfo) *dispatcher.Dispatcher {
	return l.dispatcherFor(t, t.Reflect())
}

func (l *Library) dispatcherFor(t typeinfo.TypeInfo, rt reflect.Type) *dispatcher.Dispatcher {
	key := t.String()
	if rt != nil {
		key += "|" + rt.String()
	}

	l.mu.RLock()
	d, ok := l.dispatchers[key]
	l.mu.RUnlock()
	if ok {
		return d
	}

	var delegate handler.Handler
	if rt != nil && !t.IsInterface() {
		if h, err := l.HandlerFor(rt); err == nil {
			delegate = h
		}
	} else if h, ok := l.Lookup(t); ok {
		delegate = h
	}

	d = dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{
		Declared: t,
		Delegate: delegate,
		Registry: l,
		Resolver: l.catalog,
		Fields:   l.fields,
		Sink:     l.sink,
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.dispatchers[key]; ok {
		return existing
	}
	l.dispatchers[key] = d
	return d
}

// DispatcherOf returns the typed dispatcher for T.
func DispatcherOf[T any](l *Library) *dispatcher.Typed[T] {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	return dispatcher.NewTyped[T](l.dispatcherFor(l.typeOf(rt), rt))
}

// typeOf returns the catalog entry for rt, or a descriptor derived from it.
// Pointers share the entry of their element type.
func (l *Library) typeOf(rt reflect.Type) typeinfo.TypeInfo {
	if info, ok := l.catalog.LookupReflect(rt); ok {
		return info
	}
	if rt.Kind() == reflect.Pointer {
		if info, ok := l.catalog.LookupReflect(rt.Elem()); ok {
			return info
		}
	}
	return typeinfo.ForReflect(rt, "")
}

// Serialize writes value as a value of the declared type.
func (l *Library) Serialize(value any, declared typeinfo.TypeInfo) persisted.Data {
	return l.DispatcherFor(declared).Serialize(value, l.ser)
}

// Deserialize reads data as a value of the declared type.
func (l *Library) Deserialize(data persisted.Data, declared typeinfo.TypeInfo) (any, bool) {
	return l.DispatcherFor(declared).Deserialize(data)
}

// ApplyManifest adds the manifest's types to the catalog. Concrete types
// known only by name are bound to a pass-through TreeHandler; interfaces
// get no handler.
func (l *Library) ApplyManifest(m *catalog.Manifest) error {
	if _, err := l.catalog.Apply(m); err != nil {
		return err
	}
	for _, desc := range l.catalog.Describe() {
		if desc.GoType != "" {
			continue
		}
		info, _ := l.catalog.Lookup(desc.Name)
		if info.IsInterface() || l.static.IsRegistered(info) {
			continue
		}
		if err := l.static.Register(info, handler.NewTreeHandler(info)); err != nil {
			return fmt.Errorf("%s - %w", logPrefix, err)
		}
	}

	l.resetCaches()
	return nil
}

// ResolveType looks a type up by fully qualified name, alias or, within
// declared, simple name.
func (l *Library) ResolveType(name string, within typeinfo.TypeInfo) (typeinfo.TypeInfo, bool) {
	return l.catalog.ResolveByName(name, within)
}

// RegisteredTypes lists the types with an explicitly registered handler.
func (l *Library) RegisteredTypes() []string {
	return l.static.Types()
}
