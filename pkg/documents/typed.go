package documents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/valuestore/pkg/dispatcher"
	"github.com/morezero/valuestore/pkg/library"
	"github.com/morezero/valuestore/pkg/persisted"
)

const typedLogPrefix = "documents:typed"

// Save stores a Go value under the declared type T, which must be in the
// catalog. Values whose written form does not read back are rejected.
func Save[T any](ctx context.Context, s *Service, collection, key string, value T, userID string) (*PutOutput, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if err := validateLocation(collection, key); err != nil {
		return nil, err
	}

	rec := dispatcher.NewRecorder(dispatcher.LogSink{})
	d := library.DispatcherOf[T](s.lib).Dispatcher().WithSink(rec)
	if _, ok := s.lib.Catalog().Lookup(d.Declared().Name()); !ok {
		return nil, &ServiceError{Code: CodeUnknownType, Message: fmt.Sprintf("type %s is not in the catalog", d.Declared().Name())}
	}
	data := d.Serialize(value, persisted.DefaultSerializer{})
	if !rec.Failed() {
		// only store what this library can read back
		d.Deserialize(data)
	}
	if rec.Failed() {
		return nil, &ServiceError{
			Code:    CodeInvalidDocument,
			Message: fmt.Sprintf("value could not be written as %s", d.Declared().Name()),
			Details: rec.Diagnostics(),
		}
	}

	out, err := s.write(ctx, writeParams{
		collection: collection,
		key:        key,
		declared:   d.Declared(),
		fields:     d.Fields(),
		data:       data,
		userID:     userID,
	})
	if err != nil {
		return nil, err
	}
	out.Diagnostics = rec.Diagnostics()
	return out, nil
}

// Load reads a stored document back as a T. The stored declared type must
// be T's type or one of its subtypes.
func Load[T any](ctx context.Context, s *Service, collection, key string) (T, error) {
	var zero T

	got, err := s.Get(ctx, &GetInput{Collection: collection, Key: key})
	if err != nil {
		return zero, err
	}

	rec := dispatcher.NewRecorder(dispatcher.LogSink{})
	d := library.DispatcherOf[T](s.lib).Dispatcher().WithSink(rec)
	declared := d.Declared()

	stored, ok := s.lib.Catalog().Lookup(got.DeclaredType)
	if !ok || !s.lib.Catalog().IsAssignable(stored, declared) {
		return zero, &ServiceError{
			Code:    CodeTypeMismatch,
			Message: fmt.Sprintf("%s/%s holds a %s, not a %s", collection, key, got.DeclaredType, declared.Name()),
		}
	}

	data, err := persisted.Parse(got.Body)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - stored body of %s/%s is not valid JSON: %v", typedLogPrefix, collection, key, err))
		return zero, &ServiceError{Code: CodeInternal, Message: "Stored document is corrupt"}
	}

	v, ok := dispatcher.NewTyped[T](d).Deserialize(data)
	if !ok || rec.Failed() {
		return zero, &ServiceError{
			Code:    CodeInvalidDocument,
			Message: fmt.Sprintf("%s/%s could not be read as %s", collection, key, declared.Name()),
			Details: rec.Diagnostics(),
		}
	}
	return v, nil
}
