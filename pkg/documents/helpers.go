package documents

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/morezero/valuestore/pkg/db"
	"github.com/morezero/valuestore/pkg/dispatcher"
	"github.com/morezero/valuestore/pkg/persisted"
)

const maxKeyBytes = 512

var collectionPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{0,127}$`)

// validateLocation checks a collection name and document key.
func validateLocation(collection, key string) *ServiceError {
	if !collectionPattern.MatchString(collection) {
		return &ServiceError{Code: CodeInvalidArgument, Message: "collection must start with a letter and contain only letters, digits, dots, hyphens, underscores (max 128)"}
	}
	if key == "" {
		return &ServiceError{Code: CodeInvalidArgument, Message: "key is required"}
	}
	if len(key) > maxKeyBytes {
		return &ServiceError{Code: CodeInvalidArgument, Message: fmt.Sprintf("key exceeds %d bytes", maxKeyBytes)}
	}
	if !utf8.ValidString(key) {
		return &ServiceError{Code: CodeInvalidArgument, Message: "key must be valid UTF-8"}
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return &ServiceError{Code: CodeInvalidArgument, Message: "key must not contain control characters"}
		}
	}
	return nil
}

// computeEtag hashes the canonical JSON form of data.
func computeEtag(data persisted.Data) (string, error) {
	canonical, err := persisted.Canonical(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:16]), nil
}

// runtimeTypeOf returns the type named by data's envelope, or the declared
// type when data is not wrapped.
func runtimeTypeOf(data persisted.Data, fields dispatcher.Fields, declared string) string {
	if m, ok := data.AsValueMap(); ok && m.Len() == 2 {
		if name, ok := m.GetAsString(fields.Type); ok && m.Has(fields.Value) {
			return name
		}
	}
	return declared
}

func ptrStringOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toGetOutput(doc *db.Document, cached bool) *GetOutput {
	return &GetOutput{
		Collection:   doc.Collection,
		Key:          doc.Key,
		DeclaredType: doc.DeclaredType,
		RuntimeType:  ptrStringOr(doc.RuntimeType, ""),
		Body:         doc.Body,
		Revision:     doc.Revision,
		Etag:         doc.ETag,
		Modified:     formatTime(doc.Modified),
		ModifiedBy:   doc.ModifiedBy,
		Cached:       cached,
	}
}
