// Package events defines the change events emitted when stored documents
// change, and the publishers that deliver them.
package events

// Change operations.
const (
	OperationPut    = "put"
	OperationDelete = "delete"
)

// DocumentChangedEvent is emitted after a document is written or removed.
type DocumentChangedEvent struct {
	Collection   string `json:"collection"`
	Key          string `json:"key"`
	Operation    string `json:"operation"`
	DeclaredType string `json:"declaredType,omitempty"`
	RuntimeType  string `json:"runtimeType,omitempty"`
	Revision     int    `json:"revision"`
	Etag         string `json:"etag,omitempty"`
	Timestamp    string `json:"timestamp"`
	UserID       string `json:"userId,omitempty"`
}
