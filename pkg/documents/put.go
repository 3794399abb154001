package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/valuestore/pkg/db"
	"github.com/morezero/valuestore/pkg/dispatcher"
	"github.com/morezero/valuestore/pkg/events"
	"github.com/morezero/valuestore/pkg/persisted"
	"github.com/morezero/valuestore/pkg/typeinfo"
)

const putLogPrefix = "documents:put"

// Put checks body against the declared type, normalizes it and stores it.
// The body is read through the type's dispatcher, so envelopes naming
// unknown or unrelated types are rejected, and written back out so the
// stored form always carries the canonical type names.
func (s *Service) Put(ctx context.Context, input *PutInput, userID string) (*PutOutput, error) {
	slog.Info(fmt.Sprintf("%s - collection=%s key=%s type=%s", putLogPrefix, input.Collection, input.Key, input.Type))

	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if err := validateLocation(input.Collection, input.Key); err != nil {
		return nil, err
	}
	if input.Type == "" {
		return nil, &ServiceError{Code: CodeInvalidArgument, Message: "type is required"}
	}
	if len(input.Body) == 0 {
		return nil, &ServiceError{Code: CodeInvalidArgument, Message: "body is required"}
	}
	if len(input.Body) > s.config.MaxBodyBytes {
		return nil, &ServiceError{Code: CodeInvalidArgument, Message: fmt.Sprintf("body exceeds %d bytes", s.config.MaxBodyBytes)}
	}

	declared, ok := s.lib.ResolveType(input.Type, typeinfo.TypeInfo{})
	if !ok {
		return nil, &ServiceError{Code: CodeUnknownType, Message: fmt.Sprintf("type %q is not in the catalog", input.Type)}
	}

	data, err := persisted.Parse(input.Body)
	if err != nil {
		return nil, &ServiceError{Code: CodeInvalidArgument, Message: "body is not valid JSON", Details: err.Error()}
	}

	rec := dispatcher.NewRecorder(dispatcher.LogSink{})
	d := s.lib.DispatcherFor(declared).WithSink(rec)

	value, ok := d.Deserialize(data)
	if !ok || rec.Failed() {
		return nil, &ServiceError{
			Code:    CodeInvalidDocument,
			Message: fmt.Sprintf("body is not a valid %s", declared.Name()),
			Details: rec.Diagnostics(),
		}
	}

	normalized := d.Serialize(value, persisted.DefaultSerializer{})
	if rec.Failed() {
		return nil, &ServiceError{
			Code:    CodeInvalidDocument,
			Message: fmt.Sprintf("%s value could not be written back", declared.Name()),
			Details: rec.Diagnostics(),
		}
	}

	out, err := s.write(ctx, writeParams{
		collection:       input.Collection,
		key:              input.Key,
		declared:         declared,
		fields:           d.Fields(),
		data:             normalized,
		expectedRevision: input.ExpectedRevision,
		userID:           userID,
	})
	if err != nil {
		return nil, err
	}
	out.Diagnostics = rec.Diagnostics()
	return out, nil
}

type writeParams struct {
	collection       string
	key              string
	declared         typeinfo.TypeInfo
	fields           dispatcher.Fields
	data             persisted.Data
	expectedRevision *int
	userID           string
}

// write stores already normalized data, skipping the write when the stored
// document has the same etag.
func (s *Service) write(ctx context.Context, p writeParams) (*PutOutput, error) {
	body, err := p.data.MarshalJSON()
	if err != nil {
		slog.Error(fmt.Sprintf("%s - marshal failed: %v", putLogPrefix, err))
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to encode document"}
	}
	etag, err := computeEtag(p.data)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - etag failed: %v", putLogPrefix, err))
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to compute etag"}
	}
	runtimeType := runtimeTypeOf(p.data, p.fields, p.declared.Name())

	existing, err := s.store.Get(ctx, p.collection, p.key)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - Get failed: %v", putLogPrefix, err))
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to look up document"}
	}
	if existing != nil && existing.ETag == etag && existing.DeclaredType == p.declared.Name() &&
		(p.expectedRevision == nil || *p.expectedRevision == existing.Revision) {
		slog.Debug(fmt.Sprintf("%s - %s/%s unchanged at revision %d", putLogPrefix, p.collection, p.key, existing.Revision))
		return &PutOutput{
			Collection:   p.collection,
			Key:          p.key,
			DeclaredType: existing.DeclaredType,
			RuntimeType:  ptrStringOr(existing.RuntimeType, ""),
			Revision:     existing.Revision,
			Etag:         existing.ETag,
			Changed:      false,
			Body:         body,
		}, nil
	}

	doc, err := s.store.Put(ctx, db.PutDocumentParams{
		Collection:       p.collection,
		Key:              p.key,
		DeclaredType:     p.declared.Name(),
		RuntimeType:      &runtimeType,
		Body:             body,
		ETag:             etag,
		ExpectedRevision: p.expectedRevision,
		UserID:           p.userID,
	})
	if errors.Is(err, db.ErrRevisionConflict) {
		current := 0
		if existing != nil {
			current = existing.Revision
		}
		return nil, &ServiceError{
			Code:    CodeConflict,
			Message: fmt.Sprintf("document %s/%s is not at the expected revision", p.collection, p.key),
			Details: map[string]int{"currentRevision": current},
		}
	}
	if err != nil {
		slog.Error(fmt.Sprintf("%s - Put failed: %v", putLogPrefix, err))
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to store document"}
	}

	s.invalidate(ctx, p.collection, p.key)
	s.publish(ctx, &events.DocumentChangedEvent{
		Collection:   doc.Collection,
		Key:          doc.Key,
		Operation:    events.OperationPut,
		DeclaredType: doc.DeclaredType,
		RuntimeType:  runtimeType,
		Revision:     doc.Revision,
		Etag:         doc.ETag,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		UserID:       p.userID,
	})

	slog.Info(fmt.Sprintf("%s - Stored %s/%s revision=%d", putLogPrefix, doc.Collection, doc.Key, doc.Revision))
	return &PutOutput{
		Collection:   doc.Collection,
		Key:          doc.Key,
		DeclaredType: doc.DeclaredType,
		RuntimeType:  runtimeType,
		Revision:     doc.Revision,
		Etag:         doc.ETag,
		Changed:      true,
		Body:         body,
	}, nil
}

// invalidate drops the cached copy. Cache failures are logged only.
func (s *Service) invalidate(ctx context.Context, collection, key string) {
	if err := s.cache.Delete(ctx, collection, key); err != nil {
		slog.Warn(fmt.Sprintf("%s - cache invalidation failed for %s/%s: %v", putLogPrefix, collection, key, err))
	}
}

// publish sends a change event. Publish failures are logged only.
func (s *Service) publish(ctx context.Context, event *events.DocumentChangedEvent) {
	if err := s.publisher.PublishChanged(ctx, event); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish change event: %v", putLogPrefix, err))
	}
}
