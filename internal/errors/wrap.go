package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// StackFrame is one caller recorded by WithStack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// String returns the frame as "function\n\tfile:line".
func (f StackFrame) String() string {
	return fmt.Sprintf("%s\n\t%s:%d", f.Function, f.File, f.Line)
}

// ContextError carries the stack captured where a system failure was first
// seen. An empty Message reports the cause unchanged.
type ContextError struct {
	Message string
	Cause   error
	Stack   []StackFrame
}

func (e *ContextError) Error() string {
	switch {
	case e.Message == "":
		if e.Cause == nil {
			return ""
		}
		return e.Cause.Error()
	case e.Cause != nil:
		return e.Message + ": " + e.Cause.Error()
	default:
		return e.Message
	}
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// StackTrace returns the stack one frame per entry.
func (e *ContextError) StackTrace() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, frame := range e.Stack {
		sb.WriteString(frame.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// WithStack records the caller's stack on err. The message is unchanged and
// a stack already present in the chain is kept.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	if len(GetStack(err)) > 0 {
		return err
	}
	return &ContextError{
		Cause: err,
		Stack: captureStack(2),
	}
}

// captureStack skips skip frames above its caller and drops runtime and
// testing frames.
func captureStack(skip int) []StackFrame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]StackFrame, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") &&
			!strings.HasPrefix(frame.Function, "testing.") {
			stack = append(stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}
		if !more {
			break
		}
	}
	return stack
}

// GetStack returns the first stack recorded in err's chain.
func GetStack(err error) []StackFrame {
	var ce *ContextError
	if errors.As(err, &ce) {
		return ce.Stack
	}
	return nil
}

// Chain returns the message of every error in the chain, outermost first.
// Stack-only wrappers repeat their cause and are skipped.
func Chain(err error) []string {
	var chain []string
	for err != nil {
		if ce, ok := err.(*ContextError); !ok || ce.Message != "" {
			chain = append(chain, err.Error())
		}
		err = errors.Unwrap(err)
	}
	return chain
}

// RootCause returns the innermost error of the chain.
func RootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
