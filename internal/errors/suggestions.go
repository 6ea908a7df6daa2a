package errors

import "errors"

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	// User input errors
	ErrInvalidDay:              "Use a weekday name such as 'Monday' or 'Mon'.",
	ErrInvalidTime:             "Use 24-hour HH:mm, for example '08:30' or '17:00'.",
	ErrInvalidTimezone:         "Use an IANA timezone name such as 'America/Sao_Paulo' or 'UTC'.",
	ErrInvalidBusinessHourType: "Business hour type must be 'default' or 'custom'.",
	ErrBusinessHourNotFound:    "Use 'livedesk hours list' to see configured business hours.",
	ErrJobNotFound:             "Use 'livedesk queue list <uid>' to see queued notifications.",
	ErrInvalidUserID:           "User ids must be non-empty and contain no whitespace.",
	ErrTeamMemberNotFound:      "Use 'livedesk team members <team>' to see team membership.",
	ErrTeamMemberExists:        "Use 'livedesk team roles add' to change an existing member's roles.",
	ErrWebhookNotFound:         "Use 'livedesk webhook list' to see configured webhooks.",
	ErrInvalidTimestamp:        "Try formats like 'in 10 minutes', 'tomorrow at 9am', or an RFC 3339 time.",
	ErrInvalidDuration:         "Try formats like '1h30m', '90m', '2h', or '45 minutes'.",
	ErrInvalidURL:              "Provide a valid URL starting with https:// (or http:// for localhost).",
	ErrUnknownStoreDriver:      "Set store.driver to 'badger' or 'mongo'.",

	// System errors
	ErrDiskFull:           "Free up disk space and try again.",
	ErrDatabaseCorrupted:  "Run 'livedesk migrate status' and check the data directory (~/.local/share/livedesk/).",
	ErrNetworkUnavailable: "Check your network connection. Delivery will retry automatically.",
	ErrLockHeld:           "Another livedesk instance is running. Use 'livedesk daemon stop' or check for stale processes.",
	ErrMigrationLocked:    "Another process is migrating. Wait, or run 'livedesk migrate unlock' if it crashed.",
	ErrStoreUnavailable:   "Check store.uri and that the database server is reachable.",
	ErrTimeout:            "The operation took too long. Try again or check your network connection.",
	ErrPermissionDenied:   "Check file permissions in your data directory (~/.local/share/livedesk/).",
}

// GetSuggestion returns a suggestion for an error, if available.
// It walks the error chain to find matching suggestions.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	// Check exact match first
	for knownErr, suggestion := range Suggestions {
		if errors.Is(err, knownErr) {
			return suggestion
		}
	}

	// Check if it's a UserError with a suggestion
	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}

	return ""
}

// GetCategorySuggestion returns a generic suggestion based on error category.
func GetCategorySuggestion(err error) string {
	if IsUserError(err) {
		return "Check your input and try again. Use --help for usage information."
	}
	if IsSystemError(err) {
		return "This is a system error. Check system resources and try again."
	}
	if IsRecoverableError(err) {
		return "This error may resolve itself. The operation will be retried automatically."
	}
	return ""
}

// CommandExamples provides example commands for common errors.
var CommandExamples = map[error][]string{
	ErrInvalidDay: {
		"livedesk hours add support --tz UTC --open Monday=08:00-17:00",
		"livedesk hours when Mon",
	},
	ErrInvalidTime: {
		"livedesk hours add support --open Tue=09:00-18:30",
		"livedesk hours fire open Monday 08:00",
	},
	ErrInvalidTimestamp: {
		"livedesk queue push user1 --at 'tomorrow at 9am'",
		"livedesk queue push user1 --in 30m",
	},
	ErrInvalidDuration: {
		"livedesk queue push user1 --in 1h30m",
		"livedesk queue claim --stale 5m",
	},
}

// GetExamples returns example commands for an error.
func GetExamples(err error) []string {
	for knownErr, examples := range CommandExamples {
		if errors.Is(err, knownErr) {
			return examples
		}
	}
	return nil
}
