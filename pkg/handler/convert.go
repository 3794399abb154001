package handler

import "reflect"

// indirect follows pointers and interfaces down to a concrete value. It
// reports false for nil.
func indirect(value any) (reflect.Value, bool) {
	v := reflect.ValueOf(value)
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

// IsNil reports whether value is nil or a nil pointer, map, slice or interface.
func IsNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Assign stores value into dst. It dereferences or allocates one level of
// pointer when needed and converts between types sharing a kind. A nil value
// leaves dst untouched.
func Assign(dst reflect.Value, value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	t := dst.Type()
	switch {
	case v.Type().AssignableTo(t):
		dst.Set(v)
	case v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().AssignableTo(t):
		dst.Set(v.Elem())
	case t.Kind() == reflect.Pointer && v.Type().AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(v)
		dst.Set(p)
	case t.Kind() == reflect.Interface && reflect.PointerTo(v.Type()).Implements(t):
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		dst.Set(p)
	case v.Kind() == t.Kind() && v.Type().ConvertibleTo(t):
		dst.Set(v.Convert(t))
	default:
		return false
	}
	return true
}
