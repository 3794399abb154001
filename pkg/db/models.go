package db

import "time"

// Document represents a row in the documents table. Body holds the
// serialized value tree as JSON.
type Document struct {
	Collection   string    `json:"collection"`
	Key          string    `json:"key"`
	DeclaredType string    `json:"declared_type"`
	RuntimeType  *string   `json:"runtime_type,omitempty"`
	Body         []byte    `json:"body"`
	ETag         string    `json:"etag"`
	Revision     int       `json:"revision"`
	Created      time.Time `json:"created"`
	CreatedBy    string    `json:"created_by"`
	Modified     time.Time `json:"modified"`
	ModifiedBy   string    `json:"modified_by"`
}

// PutDocumentParams holds parameters for Repository.Put.
type PutDocumentParams struct {
	Collection   string
	Key          string
	DeclaredType string
	RuntimeType  *string
	Body         []byte
	ETag         string
	// ExpectedRevision, when set, makes the write conditional on the
	// stored revision. 0 means the document must not exist yet.
	ExpectedRevision *int
	UserID           string
}

// ListDocumentsParams holds parameters for Repository.List.
type ListDocumentsParams struct {
	Collection   string
	DeclaredType string
	Prefix       string
	Page         int
	Limit        int
}
