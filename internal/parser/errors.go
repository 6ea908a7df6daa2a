package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/manav03panchal/livedesk/internal/errors"
)

// TimeParseError represents a time parsing error with helpful suggestions.
type TimeParseError struct {
	Input      string
	Field      string
	Message    string
	Examples   []string
	Suggestion string
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Input, e.Message)
}

// NewTimeParseError creates a new time parse error with examples.
func NewTimeParseError(field, input, message string, examples ...string) *TimeParseError {
	return &TimeParseError{
		Input:    input,
		Field:    field,
		Message:  message,
		Examples: examples,
	}
}

// FormatWithExamples returns the error message with example suggestions.
func (e *TimeParseError) FormatWithExamples() string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Examples) > 0 {
		sb.WriteString("\n\nValid examples:\n")
		for _, ex := range e.Examples {
			sb.WriteString("  - ")
			sb.WriteString(ex)
			sb.WriteString("\n")
		}
	}

	if e.Suggestion != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

// DurationExamples provides example duration formats.
var DurationExamples = []string{
	"90s",
	"15m",
	"1h30m",
	"2 hours",
	"1d",
}

// TimestampExamples provides example timestamp formats.
var TimestampExamples = []string{
	"now",
	"tomorrow at 9am",
	"friday 17:00",
	"2026-01-15T14:00:00Z",
}

// ScheduleExamples provides example --at values.
var ScheduleExamples = []string{
	"+5m",
	"+2h",
	"tomorrow 9am",
	"monday 08:00",
}

// NewDurationError creates a duration parse error with standard examples.
func NewDurationError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "duration",
		Message:    "could not parse duration",
		Examples:   DurationExamples,
		Suggestion: errors.Suggestions[errors.ErrInvalidDuration],
	}
}

// NewTimestampError creates a timestamp parse error with standard examples.
func NewTimestampError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "timestamp",
		Message:    "could not parse time",
		Examples:   TimestampExamples,
		Suggestion: errors.Suggestions[errors.ErrInvalidTimestamp],
	}
}

// NewScheduleError creates a dispatch time error with standard examples.
func NewScheduleError(input, message string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "at",
		Message:    message,
		Examples:   ScheduleExamples,
		Suggestion: "Dispatch times can be relative (+5m) or absolute (friday 5pm).",
	}
}

// ToUserError converts a TimeParseError to a UserError for consistent handling.
func (e *TimeParseError) ToUserError() *errors.UserError {
	suggestion := e.Suggestion
	if len(e.Examples) > 0 && suggestion == "" {
		suggestion = fmt.Sprintf("Try: %s", strings.Join(e.Examples[:min(3, len(e.Examples))], ", "))
	}

	return errors.NewUserErrorWithField(e.Field, e.Input, e.Message, suggestion)
}

// ValidateAndSuggest validates input and returns helpful error if invalid.
func ValidateAndSuggest(inputType, input string, now time.Time) error {
	switch inputType {
	case "duration":
		if !ParseDuration(input).Valid {
			return NewDurationError(input)
		}
	case "timestamp":
		if ParseTimestamp(input, now).Error != nil {
			return NewTimestampError(input)
		}
	case "at":
		if _, err := ParseAt(input, now); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown input type: %s", inputType)
	}
	return nil
}
