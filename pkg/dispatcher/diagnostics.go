package dispatcher

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const diagLogPrefix = "dispatcher:diagnostics"

// Outcome is the tier of a call that did not plainly succeed.
type Outcome int

const (
	// OutcomeDegraded means a best-effort fallback was used and a value may
	// still have been produced.
	OutcomeDegraded Outcome = iota + 1
	// OutcomeFailed means no value could be produced.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Code identifies a diagnostic condition.
type Code string

const (
	CodeMissingPrimitiveHandler Code = "MISSING_PRIMITIVE_HANDLER"
	CodeNoHandler               Code = "NO_HANDLER"
	CodeUnresolvableType        Code = "UNRESOLVABLE_TYPE"
	CodeTypeConfusion           Code = "TYPE_CONFUSION"
	CodeMissingResolvedHandler  Code = "MISSING_RESOLVED_HANDLER"
)

// Diagnostic describes why a serialize or deserialize call degraded or failed.
type Diagnostic struct {
	Outcome      Outcome `json:"outcome"`
	Code         Code    `json:"code"`
	Message      string  `json:"message"`
	DeclaredType string  `json:"declaredType"`
	TypeName     string  `json:"typeName,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %s", d.Outcome, d.Code, d.Message)
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(d Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// LogSink logs failures at error level and degraded outcomes at warn level.
type LogSink struct{}

func (LogSink) Report(d Diagnostic) {
	msg := fmt.Sprintf("%s - [%s] %s (declared %s)", diagLogPrefix, d.Code, d.Message, d.DeclaredType)
	if d.Outcome == OutcomeFailed {
		slog.Error(msg)
		return
	}
	slog.Warn(msg)
}

// Recorder collects diagnostics and forwards them to an optional next sink.
type Recorder struct {
	mu    sync.Mutex
	diags []Diagnostic
	next  Sink
}

// NewRecorder creates a recorder forwarding to next, which may be nil.
func NewRecorder(next Sink) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Report(d Diagnostic) {
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()
	if r.next != nil {
		r.next.Report(d)
	}
}

// Diagnostics returns everything recorded so far.
func (r *Recorder) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}

// Failures returns the diagnostics with OutcomeFailed.
func (r *Recorder) Failures() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics() {
		if d.Outcome == OutcomeFailed {
			out = append(out, d)
		}
	}
	return out
}

// Failed reports whether any failure was recorded.
func (r *Recorder) Failed() bool {
	return len(r.Failures()) > 0
}

// Err joins the recorded failures into one error, or returns nil.
func (r *Recorder) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = f.String()
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Reset discards recorded diagnostics.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.diags = nil
	r.mu.Unlock()
}
