package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/valuestore/pkg/events"
)

const deleteLogPrefix = "documents:delete"

// Delete removes a document. Deleting a missing document is not an error.
func (s *Service) Delete(ctx context.Context, input *DeleteInput, userID string) (*DeleteOutput, error) {
	slog.Info(fmt.Sprintf("%s - collection=%s key=%s", deleteLogPrefix, input.Collection, input.Key))

	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if err := validateLocation(input.Collection, input.Key); err != nil {
		return nil, err
	}

	deleted, err := s.store.Delete(ctx, input.Collection, input.Key)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - Delete failed: %v", deleteLogPrefix, err))
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to delete document"}
	}

	s.invalidate(ctx, input.Collection, input.Key)
	if deleted {
		s.publish(ctx, &events.DocumentChangedEvent{
			Collection: input.Collection,
			Key:        input.Key,
			Operation:  events.OperationDelete,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			UserID:     userID,
		})
	}
	return &DeleteOutput{Deleted: deleted}, nil
}
