package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeParseErrorError(t *testing.T) {
	err := &TimeParseError{
		Input:   "badtime",
		Field:   "timestamp",
		Message: "could not parse time",
	}
	result := err.Error()
	assert.Contains(t, result, "invalid timestamp")
	assert.Contains(t, result, "badtime")
	assert.Contains(t, result, "could not parse time")
}

func TestNewTimeParseError(t *testing.T) {
	err := NewTimeParseError("duration", "xyz", "invalid format", "1h", "30m", "2h30m")
	assert.Equal(t, "duration", err.Field)
	assert.Equal(t, "xyz", err.Input)
	assert.Equal(t, "invalid format", err.Message)
	assert.Len(t, err.Examples, 3)
	assert.Equal(t, "1h", err.Examples[0])
}

func TestFormatWithExamples(t *testing.T) {
	t.Run("with_examples", func(t *testing.T) {
		err := &TimeParseError{
			Input:    "badtime",
			Field:    "timestamp",
			Message:  "could not parse",
			Examples: []string{"9am", "10:30", "2pm"},
		}
		result := err.FormatWithExamples()
		assert.Contains(t, result, "invalid timestamp")
		assert.Contains(t, result, "Valid examples:")
		assert.Contains(t, result, "9am")
		assert.Contains(t, result, "10:30")
		assert.Contains(t, result, "2pm")
	})

	t.Run("with_suggestion", func(t *testing.T) {
		err := &TimeParseError{
			Input:      "badtime",
			Field:      "timestamp",
			Message:    "could not parse",
			Examples:   []string{"9am"},
			Suggestion: "Try using natural language",
		}
		result := err.FormatWithExamples()
		assert.Contains(t, result, "Try using natural language")
	})

	t.Run("no_examples_no_suggestion", func(t *testing.T) {
		err := &TimeParseError{
			Input:   "badtime",
			Field:   "timestamp",
			Message: "could not parse",
		}
		result := err.FormatWithExamples()
		assert.Contains(t, result, "invalid timestamp")
		assert.NotContains(t, result, "Valid examples:")
	})
}

func TestNewDurationError(t *testing.T) {
	err := NewDurationError("badvalue")
	assert.Equal(t, "duration", err.Field)
	assert.Equal(t, "badvalue", err.Input)
	assert.Contains(t, err.Message, "could not parse duration")
	assert.Equal(t, DurationExamples, err.Examples)
	assert.Contains(t, err.Suggestion, "1h30m")
}

func TestNewTimestampError(t *testing.T) {
	err := NewTimestampError("notadate")
	assert.Equal(t, "timestamp", err.Field)
	assert.Equal(t, "notadate", err.Input)
	assert.Contains(t, err.Message, "could not parse time")
	assert.Equal(t, TimestampExamples, err.Examples)
	assert.Contains(t, err.Suggestion, "tomorrow at 9am")
}

func TestNewScheduleError(t *testing.T) {
	err := NewScheduleError("sometime", "could not parse dispatch time")
	assert.Equal(t, "at", err.Field)
	assert.Equal(t, "sometime", err.Input)
	assert.Equal(t, ScheduleExamples, err.Examples)
	assert.Contains(t, err.Suggestion, "relative")
}

func TestToUserError(t *testing.T) {
	t.Run("with_suggestion", func(t *testing.T) {
		err := &TimeParseError{
			Input:      "badtime",
			Field:      "timestamp",
			Message:    "could not parse",
			Suggestion: "Try using natural language",
		}
		userErr := err.ToUserError()
		assert.NotNil(t, userErr)
		assert.Contains(t, userErr.Error(), "badtime")
		assert.Equal(t, "timestamp", userErr.Field)
	})

	t.Run("with_examples_no_suggestion", func(t *testing.T) {
		err := &TimeParseError{
			Input:    "badtime",
			Field:    "timestamp",
			Message:  "could not parse",
			Examples: []string{"9am", "10:30", "2pm", "5pm"},
		}
		userErr := err.ToUserError()
		assert.NotNil(t, userErr)
	})
}

func TestValidateAndSuggest(t *testing.T) {
	now := time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)

	t.Run("valid_duration", func(t *testing.T) {
		assert.NoError(t, ValidateAndSuggest("duration", "1h30m", now))
	})

	t.Run("invalid_duration", func(t *testing.T) {
		err := ValidateAndSuggest("duration", "notaduration", now)
		require.Error(t, err)
		parseErr, ok := err.(*TimeParseError)
		require.True(t, ok)
		assert.Equal(t, "duration", parseErr.Field)
	})

	t.Run("valid_timestamp", func(t *testing.T) {
		assert.NoError(t, ValidateAndSuggest("timestamp", "2026-10-13T09:00:00Z", now))
	})

	t.Run("valid_at", func(t *testing.T) {
		assert.NoError(t, ValidateAndSuggest("at", "+1h", now))
	})

	t.Run("invalid_at", func(t *testing.T) {
		assert.Error(t, ValidateAndSuggest("at", "+0m", now))
	})

	t.Run("unknown_type", func(t *testing.T) {
		err := ValidateAndSuggest("unknown", "anything", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown input type")
	})
}
