package typeinfo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type shape interface{ Area() float64 }

type square struct{ Side float64 }

func (s square) Area() float64 { return s.Side * s.Side }

func TestOf_DerivesKind(t *testing.T) {
	tests := []struct {
		name string
		info TypeInfo
		want Kind
	}{
		{"string", Of[string](""), Primitive},
		{"int64", Of[int64](""), Primitive},
		{"interface", Of[shape]("com.example.Shape"), Interface},
		{"struct", Of[square]("com.example.Square"), Class},
		{"pointer", Of[*square]("com.example.Square"), Class},
		{"slice", Of[[]shape](""), Parameterized},
		{"map", Of[map[string]int](""), Parameterized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.info.Kind())
		})
	}
}

func TestNames(t *testing.T) {
	r := require.New(t)

	info := Of[square]("com.example.Square")
	r.Equal("com.example.Square", info.Name())
	r.Equal("Square", info.SimpleName())

	derived := Of[square]("")
	r.Equal("github.com/morezero/valuestore/pkg/typeinfo.square", derived.Name())
	r.Equal("square", derived.SimpleName())
	r.Equal("string", Of[string]("").Name())
}

func TestParameterized(t *testing.T) {
	r := require.New(t)

	box := Named("com.example.Box", Class)
	boxOfInt := NewParameterized(box, Named("int", Primitive))

	r.True(boxOfInt.IsParameterized())
	r.Equal("com.example.Box[int]", boxOfInt.String())
	r.True(boxOfInt.SameRaw(box))
	r.False(boxOfInt.Equal(box))
	r.Equal(Class, boxOfInt.Raw().Kind())
	r.True(boxOfInt.Raw().Equal(box))
	r.Len(boxOfInt.Args(), 1)
}

func TestParseKind(t *testing.T) {
	r := require.New(t)
	for _, k := range []Kind{Primitive, Class, Interface, Parameterized} {
		parsed, err := ParseKind(k.String())
		r.NoError(err)
		r.Equal(k, parsed)
	}
	parsed, err := ParseKind("")
	r.NoError(err)
	r.Equal(Class, parsed)

	_, err = ParseKind("enum")
	r.Error(err)
}
