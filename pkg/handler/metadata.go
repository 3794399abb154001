package handler

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

const persistTagKey = "persist"

// StructMetadata lists the persisted fields of a struct type.
type StructMetadata struct {
	Type   reflect.Type
	Fields []FieldDescriptor
}

// FieldDescriptor describes one persisted struct field.
type FieldDescriptor struct {
	Name        string
	PersistName string
	Index       []int
	Type        reflect.Type
	OmitEmpty   bool
}

var structMetadataCache sync.Map // map[reflect.Type]*StructMetadata

// ErrNotStruct indicates the provided type is not a struct or pointer to one.
var ErrNotStruct = fmt.Errorf("handler: target is not a struct")

// GetStructMetadata returns cached metadata for a struct type (or a pointer
// to one). Exported fields are persisted under their name unless a
// `persist:"name,omitempty"` tag says otherwise; `persist:"-"` skips a field.
// Untagged embedded structs are flattened.
func GetStructMetadata(t reflect.Type) (*StructMetadata, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}
	if meta, ok := structMetadataCache.Load(t); ok {
		return meta.(*StructMetadata), nil
	}

	meta := &StructMetadata{Type: t}
	seen := make(map[string]bool)
	if err := collectFields(t, nil, meta, seen); err != nil {
		return nil, err
	}
	actual, _ := structMetadataCache.LoadOrStore(t, meta)
	return actual.(*StructMetadata), nil
}

func collectFields(t reflect.Type, prefix []int, meta *StructMetadata, seen map[string]bool) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" && !field.Anonymous {
			continue
		}

		tag := field.Tag.Get(persistTagKey)
		if tag == "-" {
			continue
		}
		name, omitEmpty := parsePersistTag(tag)

		index := make([]int, len(prefix)+1)
		copy(index, prefix)
		index[len(prefix)] = i

		if field.Anonymous && name == "" && field.Type.Kind() == reflect.Struct {
			if err := collectFields(field.Type, index, meta, seen); err != nil {
				return err
			}
			continue
		}
		if field.PkgPath != "" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		if seen[name] {
			return fmt.Errorf("handler: duplicate persisted field %q in %s", name, meta.Type)
		}
		seen[name] = true

		meta.Fields = append(meta.Fields, FieldDescriptor{
			Name:        field.Name,
			PersistName: name,
			Index:       index,
			Type:        field.Type,
			OmitEmpty:   omitEmpty,
		})
	}
	return nil
}

func parsePersistTag(tag string) (name string, omitEmpty bool) {
	if tag == "" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

// ResetStructMetadataCache clears computed metadata; intended for tests.
func ResetStructMetadataCache() {
	structMetadataCache.Range(func(k, _ any) bool {
		structMetadataCache.Delete(k)
		return true
	})
}
