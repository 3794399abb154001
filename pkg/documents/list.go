package documents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/valuestore/pkg/db"
	"github.com/morezero/valuestore/pkg/typeinfo"
)

const listLogPrefix = "documents:list"

// List lists the documents of a collection, optionally only those stored
// under one declared type or with a key prefix.
func (s *Service) List(ctx context.Context, input *ListInput) (*ListOutput, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if err := validateLocation(input.Collection, "-"); err != nil {
		return nil, err
	}

	declared := ""
	if input.Type != "" {
		t, ok := s.lib.ResolveType(input.Type, typeinfo.TypeInfo{})
		if !ok {
			return nil, &ServiceError{Code: CodeUnknownType, Message: fmt.Sprintf("type %q is not in the catalog", input.Type)}
		}
		declared = t.Name()
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = s.config.DefaultPageSize
	}
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}

	docs, total, err := s.store.List(ctx, db.ListDocumentsParams{
		Collection:   input.Collection,
		DeclaredType: declared,
		Prefix:       input.Prefix,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%s - List failed: %v", listLogPrefix, err))
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to list documents"}
	}

	summaries := make([]DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, DocumentSummary{
			Key:          d.Key,
			DeclaredType: d.DeclaredType,
			RuntimeType:  ptrStringOr(d.RuntimeType, ""),
			Revision:     d.Revision,
			Etag:         d.ETag,
			Modified:     formatTime(d.Modified),
		})
	}

	return &ListOutput{
		Documents: summaries,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}
