package errors

import (
	"fmt"
	"strings"
)

// FormatStackTrace renders frames as a numbered list.
func FormatStackTrace(frames []StackFrame) string {
	if len(frames) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Stack trace:\n")
	for i, frame := range frames {
		fmt.Fprintf(&sb, "  %d. %s\n       at %s:%d\n", i+1, frame.Function, frame.File, frame.Line)
	}
	return sb.String()
}

// FormatUserError renders err with its suggestion and example commands.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(err.Error())
	if s := GetSuggestion(err); s != "" {
		sb.WriteString("\n")
		sb.WriteString(s)
	}
	if examples := GetExamples(err); len(examples) > 0 {
		sb.WriteString("\nExamples:")
		for _, ex := range examples {
			sb.WriteString("\n  ")
			sb.WriteString(ex)
		}
	}
	return sb.String()
}

// FormatDebugError renders err for --debug: the user message followed by
// the category, the wrap chain, the root cause and any recorded stack.
func FormatDebugError(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(FormatUserError(err))
	sb.WriteString("\n\nCategory: ")
	sb.WriteString(GetCategory(err).String())
	sb.WriteString("\n")

	if chain := Chain(err); len(chain) > 1 {
		sb.WriteString("\nError chain:\n")
		for i, msg := range chain {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, msg)
		}
	}
	if root := RootCause(err); root != err && root.Error() != err.Error() {
		fmt.Fprintf(&sb, "\nRoot cause: %v\n", root)
	}
	if stack := GetStack(err); len(stack) > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatStackTrace(stack))
	}
	return sb.String()
}
