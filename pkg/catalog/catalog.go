// Package catalog is the type catalog used to resolve persisted type names to known types.
package catalog

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/morezero/valuestore/pkg/typeinfo"
)

const logPrefix = "catalog:catalog"

type entry struct {
	info        typeinfo.TypeInfo
	supertypes  []string
	description string
}

// Catalog is a registry of known types and their declared lineage. It is
// populated ahead of time and safe for concurrent reads.
type Catalog struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	byReflect map[reflect.Type]string
	aliases   map[string]string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		entries:   make(map[string]*entry),
		byReflect: make(map[reflect.Type]string),
		aliases:   make(map[string]string),
	}
}

// Register adds t with the given direct supertypes. Registering a Go type
// under a name previously known only by name attaches the Go type to it.
func (c *Catalog) Register(t typeinfo.TypeInfo, supertypes ...typeinfo.TypeInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(t.Raw(), supertypes...)
}

// MustRegister is Register that panics on error.
func (c *Catalog) MustRegister(t typeinfo.TypeInfo, supertypes ...typeinfo.TypeInfo) {
	if err := c.Register(t, supertypes...); err != nil {
		panic(err)
	}
}

func (c *Catalog) register(t typeinfo.TypeInfo, supertypes ...typeinfo.TypeInfo) error {
	if t.Name() == "" {
		return fmt.Errorf("%s - cannot register a type without a name", logPrefix)
	}
	if target, ok := c.aliases[t.Name()]; ok {
		return fmt.Errorf("%s - %q is already an alias of %q", logPrefix, t.Name(), target)
	}

	if rt := t.Reflect(); rt != nil {
		if other, ok := c.byReflect[rt]; ok && other != t.Name() {
			return fmt.Errorf("%s - Go type %s is already registered as %q", logPrefix, rt, other)
		}
	}

	e, exists := c.entries[t.Name()]
	switch {
	case !exists:
		e = &entry{info: t}
		c.entries[t.Name()] = e
	case e.info.Reflect() == nil && t.Reflect() != nil:
		e.info = t
	case t.Reflect() != nil && e.info.Reflect() != t.Reflect():
		return fmt.Errorf("%s - type %q is already registered for %s", logPrefix, t.Name(), e.info.Reflect())
	}
	if rt := t.Reflect(); rt != nil {
		c.byReflect[rt] = t.Name()
	}

	for _, super := range supertypes {
		super = super.Raw()
		if super.Name() == t.Name() {
			continue
		}
		if _, ok := c.entries[super.Name()]; !ok {
			if err := c.register(super); err != nil {
				return err
			}
		}
		e.addSupertype(super.Name())
	}
	return nil
}

func (e *entry) addSupertype(name string) {
	for _, s := range e.supertypes {
		if s == name {
			return
		}
	}
	e.supertypes = append(e.supertypes, name)
}

// Alias makes alias resolve to the registered type target. Aliases keep data
// written under renamed type names readable.
func (c *Catalog) Alias(alias, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[alias]; ok {
		return fmt.Errorf("%s - alias %q collides with a registered type", logPrefix, alias)
	}
	if _, ok := c.entries[target]; !ok {
		return fmt.Errorf("%s - alias %q targets unknown type %q", logPrefix, alias, target)
	}
	c.aliases[alias] = target
	return nil
}

// Lookup returns the type registered under name or under an alias of it.
func (c *Catalog) Lookup(name string) (typeinfo.TypeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.lookup(name)
	if e == nil {
		return typeinfo.TypeInfo{}, false
	}
	return e.info, true
}

func (c *Catalog) lookup(name string) *entry {
	if e, ok := c.entries[name]; ok {
		return e
	}
	if target, ok := c.aliases[name]; ok {
		return c.entries[target]
	}
	return nil
}

// LookupReflect returns the type registered for a Go type.
func (c *Catalog) LookupReflect(rt reflect.Type) (typeinfo.TypeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.byReflect[rt]
	if !ok {
		return typeinfo.TypeInfo{}, false
	}
	return c.entries[name].info, true
}

// RuntimeType returns the descriptor of a value's concrete type. Values that
// describe themselves win; unregistered Go types get a derived descriptor.
func (c *Catalog) RuntimeType(value any) typeinfo.TypeInfo {
	if d, ok := value.(typeinfo.Described); ok {
		return d.TypeInfo()
	}
	rt := reflect.TypeOf(value)
	if rt == nil {
		return typeinfo.TypeInfo{}
	}
	if info, ok := c.LookupReflect(rt); ok {
		return info
	}
	if rt.Kind() == reflect.Pointer {
		if info, ok := c.LookupReflect(rt.Elem()); ok {
			return info
		}
	}
	return typeinfo.ForReflect(rt, "")
}

// IsAssignable reports whether sub is super or a direct or transitive subtype
// of it. Go types that satisfy an interface super are subtypes of it.
func (c *Catalog) IsAssignable(sub, super typeinfo.TypeInfo) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isAssignable(sub.Raw(), super.Raw())
}

func (c *Catalog) isAssignable(sub, super typeinfo.TypeInfo) bool {
	if sub.SameRaw(super) {
		return true
	}
	if implements(sub.Reflect(), super.Reflect()) {
		return true
	}

	visited := map[string]bool{sub.Name(): true}
	queue := []string{sub.Name()}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		e := c.entries[name]
		if e == nil {
			continue
		}
		for _, s := range e.supertypes {
			if s == super.Name() {
				return true
			}
			if visited[s] {
				continue
			}
			visited[s] = true
			if se := c.entries[s]; se != nil && implements(se.info.Reflect(), super.Reflect()) {
				return true
			}
			queue = append(queue, s)
		}
	}
	return false
}

func implements(sub, super reflect.Type) bool {
	if sub == nil || super == nil || super.Kind() != reflect.Interface {
		return false
	}
	if sub.Implements(super) {
		return true
	}
	return sub.Kind() != reflect.Pointer && reflect.PointerTo(sub).Implements(super)
}

// SubtypesOf returns every registered type assignable to t, excluding t
// itself, sorted by name.
func (c *Catalog) SubtypesOf(t typeinfo.TypeInfo) []typeinfo.TypeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subtypesOf(t.Raw())
}

func (c *Catalog) subtypesOf(t typeinfo.TypeInfo) []typeinfo.TypeInfo {
	var out []typeinfo.TypeInfo
	for name, e := range c.entries {
		if name == t.Name() {
			continue
		}
		if c.isAssignable(e.info, t) {
			out = append(out, e.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ResolveByName finds the type a persisted type tag refers to. Fully
// qualified names and aliases resolve globally; the caller checks that the
// result is assignable to the declared type. Simple names resolve only among
// the subtypes of within and must be unambiguous.
func (c *Catalog) ResolveByName(name string, within typeinfo.TypeInfo) (typeinfo.TypeInfo, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return typeinfo.TypeInfo{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if e := c.lookup(name); e != nil {
		return e.info, true
	}

	var matches []typeinfo.TypeInfo
	for _, sub := range c.subtypesOf(within.Raw()) {
		if sub.SimpleName() == name {
			matches = append(matches, sub)
		}
	}
	switch len(matches) {
	case 0:
		return typeinfo.TypeInfo{}, false
	case 1:
		return matches[0], true
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name()
		}
		slog.Warn(fmt.Sprintf("%s - simple name %q is ambiguous within %s: %s",
			logPrefix, name, within.Name(), strings.Join(names, ", ")))
		return typeinfo.TypeInfo{}, false
	}
}

// TypeDescription is the public view of a catalog entry.
type TypeDescription struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Supertypes  []string `json:"supertypes,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	GoType      string   `json:"goType,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Describe returns every registered type sorted by name.
func (c *Catalog) Describe() []TypeDescription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	aliasesOf := make(map[string][]string)
	for alias, target := range c.aliases {
		aliasesOf[target] = append(aliasesOf[target], alias)
	}

	out := make([]TypeDescription, 0, len(c.entries))
	for name, e := range c.entries {
		d := TypeDescription{
			Name:        name,
			Kind:        e.info.Kind().String(),
			Supertypes:  append([]string(nil), e.supertypes...),
			Aliases:     aliasesOf[name],
			Description: e.description,
		}
		sort.Strings(d.Aliases)
		if rt := e.info.Reflect(); rt != nil {
			d.GoType = rt.String()
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DescribeType returns the description of a single type or alias.
func (c *Catalog) DescribeType(name string) (TypeDescription, bool) {
	info, ok := c.Lookup(name)
	if !ok {
		return TypeDescription{}, false
	}
	for _, d := range c.Describe() {
		if d.Name == info.Name() {
			return d, true
		}
	}
	return TypeDescription{}, false
}

// Len returns the number of registered types.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Catalog) setDescription(name, description string) {
	if e := c.entries[name]; e != nil && description != "" {
		e.description = description
	}
}
