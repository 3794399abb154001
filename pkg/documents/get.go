package documents

import (
	"context"
	"fmt"
	"log/slog"
)

const getLogPrefix = "documents:get"

// Get returns a stored document, from the cache when possible.
func (s *Service) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	slog.Debug(fmt.Sprintf("%s - collection=%s key=%s", getLogPrefix, input.Collection, input.Key))

	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if err := validateLocation(input.Collection, input.Key); err != nil {
		return nil, err
	}

	cached, err := s.cache.Get(ctx, input.Collection, input.Key)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - cache read failed, falling back to store: %v", getLogPrefix, err))
	}
	if cached != nil {
		return toGetOutput(cached, true), nil
	}

	doc, err := s.store.Get(ctx, input.Collection, input.Key)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - Get failed: %v", getLogPrefix, err))
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to read document"}
	}
	if doc == nil {
		return nil, &ServiceError{Code: CodeNotFound, Message: fmt.Sprintf("document %s/%s not found", input.Collection, input.Key)}
	}

	if err := s.cache.Set(ctx, doc); err != nil {
		slog.Warn(fmt.Sprintf("%s - cache fill failed for %s/%s: %v", getLogPrefix, doc.Collection, doc.Key, err))
	}
	return toGetOutput(doc, false), nil
}
