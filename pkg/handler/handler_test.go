package handler

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/morezero/valuestore/pkg/persisted"
	"github.com/morezero/valuestore/pkg/typeinfo"
)

var ser persisted.DefaultSerializer

// testResolver builds handlers from Go types alone.
type testResolver struct{}

func (r testResolver) FieldHandler(rt reflect.Type) (Handler, error) {
	switch {
	case isPrimitiveKind(rt.Kind()):
		return NewPrimitive(rt)
	case rt.Kind() == reflect.Pointer:
		elem, err := r.FieldHandler(rt.Elem())
		if err != nil {
			return nil, err
		}
		return NewPointerHandler(rt, elem)
	case rt.Kind() == reflect.Struct:
		return NewStructHandler(rt, r)
	case rt.Kind() == reflect.Slice, rt.Kind() == reflect.Array:
		return NewListHandler(rt, r)
	case rt.Kind() == reflect.Map:
		return NewMapHandler(rt, r)
	}
	return nil, fmt.Errorf("no handler for %v", rt)
}

func mustJSON(t *testing.T, d persisted.Data) string {
	t.Helper()
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	return string(b)
}

type celsius float64

func TestPrimitiveHandler(t *testing.T) {
	tests := []struct {
		name  string
		h     *PrimitiveHandler
		value any
		json  string
	}{
		{"string", PrimitiveFor[string](), "hi", `"hi"`},
		{"bool", PrimitiveFor[bool](), true, `true`},
		{"int8", PrimitiveFor[int8](), int8(-7), `-7`},
		{"uint32", PrimitiveFor[uint32](), uint32(7), `7`},
		{"float64", PrimitiveFor[float64](), 1.5, `1.5`},
		{"named", PrimitiveFor[celsius](), celsius(21.5), `21.5`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			d := tt.h.Serialize(tt.value, ser)
			r.Equal(tt.json, mustJSON(t, d))

			back, ok := tt.h.Deserialize(d)
			r.True(ok)
			r.Equal(tt.value, back)
		})
	}
}

func TestPrimitiveHandler_Rejects(t *testing.T) {
	r := require.New(t)

	_, ok := PrimitiveFor[int8]().Deserialize(persisted.Int(300))
	r.False(ok, "overflow")
	_, ok = PrimitiveFor[uint]().Deserialize(persisted.Int(-1))
	r.False(ok)
	_, ok = PrimitiveFor[string]().Deserialize(persisted.Int(1))
	r.False(ok)
	r.True(PrimitiveFor[string]().Serialize(nil, ser).IsNull())

	_, err := NewPrimitive(reflect.TypeOf(struct{}{}))
	r.Error(err)
}

type address struct {
	City string `persist:"city"`
	Zip  string `persist:"zip,omitempty"`
}

type base struct {
	ID string `persist:"id"`
}

type person struct {
	base
	Name     string            `persist:"name"`
	Age      int               `persist:"age"`
	Home     *address          `persist:"home,omitempty"`
	Tags     []string          `persist:"tags,omitempty"`
	Scores   map[string]uint16 `persist:"scores,omitempty"`
	Secret   string            `persist:"-"`
	internal int
}

type node struct {
	Value int   `persist:"value"`
	Next  *node `persist:"next,omitempty"`
}

func TestStructHandler_RoundTrip(t *testing.T) {
	r := require.New(t)
	h, err := NewStructHandler(reflect.TypeOf(person{}), testResolver{})
	r.NoError(err)
	r.Equal(GenericStructural, h.Classification())

	p := person{
		base:   base{ID: "p1"},
		Name:   "Ada",
		Age:    36,
		Home:   &address{City: "London"},
		Tags:   []string{"math", "engines"},
		Scores: map[string]uint16{"b": 2, "a": 1},
		Secret: "hidden",
	}
	d := h.Serialize(p, ser)
	r.Equal(`{"id":"p1","name":"Ada","age":36,"home":{"city":"London"},"tags":["math","engines"],"scores":{"a":1,"b":2}}`, mustJSON(t, d))

	back, ok := h.Deserialize(d)
	r.True(ok)
	want := p
	want.Secret = ""
	r.Equal(want, back)
}

func TestStructHandler_PointerType(t *testing.T) {
	r := require.New(t)
	h, err := NewStructHandler(reflect.TypeOf(&address{}), testResolver{})
	r.NoError(err)

	d := h.Serialize(&address{City: "Paris", Zip: "75001"}, ser)
	back, ok := h.Deserialize(d)
	r.True(ok)
	r.Equal(&address{City: "Paris", Zip: "75001"}, back)

	r.True(h.Serialize((*address)(nil), ser).IsNull())
	r.True(h.Serialize(person{}, ser).IsNull(), "wrong type")
}

func TestStructHandler_RecursiveType(t *testing.T) {
	r := require.New(t)
	h, err := NewStructHandler(reflect.TypeOf(node{}), testResolver{})
	r.NoError(err)

	list := node{Value: 1, Next: &node{Value: 2, Next: &node{Value: 3}}}
	d := h.Serialize(list, ser)
	r.Equal(`{"value":1,"next":{"value":2,"next":{"value":3}}}`, mustJSON(t, d))

	back, ok := h.Deserialize(d)
	r.True(ok)
	r.Equal(list, back)
}

func TestStructHandler_PartialData(t *testing.T) {
	r := require.New(t)
	h, err := NewStructHandler(reflect.TypeOf(person{}), testResolver{})
	r.NoError(err)

	data, err := persisted.Parse([]byte(`{"name":"Bob","age":"not a number","extra":true,"home":null}`))
	r.NoError(err)

	back, ok := h.Deserialize(data)
	r.True(ok)
	r.Equal(person{Name: "Bob"}, back)

	_, ok = h.Deserialize(persisted.String("nope"))
	r.False(ok)
}

func TestGetStructMetadata(t *testing.T) {
	r := require.New(t)
	meta, err := GetStructMetadata(reflect.TypeOf(&person{}))
	r.NoError(err)

	names := make([]string, 0, len(meta.Fields))
	for _, f := range meta.Fields {
		names = append(names, f.PersistName)
	}
	r.Equal([]string{"id", "name", "age", "home", "tags", "scores"}, names)
	r.Equal([]int{0, 0}, meta.Fields[0].Index)

	_, err = GetStructMetadata(reflect.TypeOf(3))
	r.ErrorIs(err, ErrNotStruct)

	type dup struct {
		A string `persist:"x"`
		B string `persist:"x"`
	}
	_, err = GetStructMetadata(reflect.TypeOf(dup{}))
	r.Error(err)
}

func TestListAndMapHandlers(t *testing.T) {
	r := require.New(t)

	arr, err := NewListHandler(reflect.TypeOf([2]int{}), testResolver{})
	r.NoError(err)
	back, ok := arr.Deserialize(persisted.Array(persisted.Int(1), persisted.Int(2), persisted.Int(3)))
	r.True(ok)
	r.Equal([2]int{1, 2}, back)

	list, err := NewListHandler(reflect.TypeOf([]string{}), testResolver{})
	r.NoError(err)
	r.True(list.Serialize([]string(nil), ser).IsNull())

	m, err := NewMapHandler(reflect.TypeOf(map[string]bool{}), testResolver{})
	r.NoError(err)
	d := m.Serialize(map[string]bool{"z": true, "a": false}, ser)
	r.Equal(`{"a":false,"z":true}`, mustJSON(t, d))

	_, err = NewMapHandler(reflect.TypeOf(map[int]bool{}), testResolver{})
	r.Error(err)
}

func TestTreeHandler(t *testing.T) {
	r := require.New(t)
	shape := typeinfo.Named("com.example.Shape", typeinfo.Interface)
	h := NewTreeHandler(shape)

	data := persisted.MapOf(persisted.Entry{Key: "r", Value: persisted.Int(2)})
	v, ok := h.Deserialize(data)
	r.True(ok)
	doc, ok := v.(*Document)
	r.True(ok)
	r.Equal("com.example.Shape", doc.TypeInfo().Name())
	r.True(persisted.Equal(data, h.Serialize(doc, ser)))
	r.True(h.Serialize(42, ser).IsNull())
}

func TestSameImplementation(t *testing.T) {
	r := require.New(t)

	s1, err := NewStructHandler(reflect.TypeOf(address{}), testResolver{})
	r.NoError(err)
	s2, err := NewStructHandler(reflect.TypeOf(address{}), testResolver{})
	r.NoError(err)
	s3, err := NewStructHandler(reflect.TypeOf(person{}), testResolver{})
	r.NoError(err)

	r.True(SameImplementation(s1, s2))
	r.False(SameImplementation(s1, s3))
	r.True(SameImplementation(&FuncHandler{Name: "x"}, &FuncHandler{Name: "x"}))
	r.False(SameImplementation(&FuncHandler{Name: "x"}, &FuncHandler{Name: "y"}))
	r.False(SameImplementation(s1, nil))
}

func TestFunc(t *testing.T) {
	r := require.New(t)
	h := Func("upper", func(v string, s persisted.Serializer) persisted.Data {
		return s.SerializeString("<" + v + ">")
	}, func(d persisted.Data) (string, bool) {
		return d.AsString()
	})

	r.Equal(`"<a>"`, mustJSON(t, h.Serialize("a", ser)))
	str := "b"
	r.Equal(`"<b>"`, mustJSON(t, h.Serialize(&str, ser)))
	r.True(h.Serialize(1, ser).IsNull())
	r.Equal(Custom, h.Classification())
}

func TestRegistry(t *testing.T) {
	r := require.New(t)
	reg := NewRegistry()

	box := typeinfo.Named("com.example.Box", typeinfo.Class)
	boxOfInt := typeinfo.NewParameterized(box, typeinfo.Named("int", typeinfo.Primitive))
	raw := &FuncHandler{Name: "box"}
	r.NoError(reg.Register(box, raw))
	r.Error(reg.Register(box, &FuncHandler{Name: "again"}))
	r.Error(reg.Register(box, nil))

	h, ok := reg.Lookup(boxOfInt)
	r.True(ok)
	r.Same(raw, h)

	special := &FuncHandler{Name: "box-int"}
	clone := reg.Clone()
	r.NoError(clone.Register(boxOfInt, special))
	h, _ = clone.Lookup(boxOfInt)
	r.Same(special, h)
	h, _ = reg.Lookup(boxOfInt)
	r.Same(raw, h)

	r.Equal([]string{"com.example.Box", "com.example.Box[int]"}, clone.Types())
	_, ok = reg.Lookup(typeinfo.Named("com.example.Missing", typeinfo.Class))
	r.False(ok)
}
