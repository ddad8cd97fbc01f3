package console

import (
	"errors"
	"fmt"
	"strings"
)

const noStackTrace = "No stack trace available."

// ExceptionInfo is the structured form of an error reported by a monitored
// operation.
type ExceptionInfo struct {
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Stack   string         `json:"stack,omitempty"`
	Inner   *ExceptionInfo `json:"inner,omitempty"`
}

// stackTracer is satisfied by errors that carry their own stack context.
type stackTracer interface {
	StackTrace() string
}

// NewExceptionInfo unwinds err through errors.Unwrap. Joined errors follow
// their first branch. A nil err yields a placeholder rather than panicking.
func NewExceptionInfo(err error) *ExceptionInfo {
	if err == nil {
		return &ExceptionInfo{Message: "unknown error", Type: "<nil>"}
	}
	info := &ExceptionInfo{
		Message: err.Error(),
		Type:    fmt.Sprintf("%T", err),
	}
	var st stackTracer
	if errors.As(err, &st) {
		info.Stack = strings.TrimSpace(st.StackTrace())
	}
	if inner := unwrapOne(err); inner != nil {
		info.Inner = NewExceptionInfo(inner)
	}
	return info
}

func unwrapOne(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if e != nil {
				return e
			}
		}
	}
	return nil
}

// Chain lists the exception and its causes from innermost to outermost.
func (e *ExceptionInfo) Chain() []*ExceptionInfo {
	var out []*ExceptionInfo
	for cur := e; cur != nil; cur = cur.Inner {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Render formats the chain as plain text, innermost cause first.
func (e *ExceptionInfo) Render() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	for i, cur := range e.Chain() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "ERROR: %s (%s)\n", cur.Message, cur.Type)
		if cur.Stack != "" {
			b.WriteString(cur.Stack)
		} else {
			b.WriteString(noStackTrace)
		}
	}
	return b.String()
}
