package commsutil

import "strings"

// Default COMMS subjects.
const (
	SubjectValueStore  = "svc.valuestore.v1"
	SubjectChangeEvent = "documents.changed"
)

var subjectTokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// SubjectToken makes s safe to use as a single subject token.
func SubjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return subjectTokenReplacer.Replace(s)
}

// BuildChangeSubject builds the per-collection change event subject under
// the given global subject.
func BuildChangeSubject(global, collection string) string {
	if global == "" {
		global = SubjectChangeEvent
	}
	return global + "." + SubjectToken(collection)
}
