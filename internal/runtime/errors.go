package runtime

import (
	"errors"
	"fmt"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
)

// Exit codes returned by the livedesk binary.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitUnavailable = 69
	ExitTempFail    = 75
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case lderrors.IsUserError(err):
		return ExitUsage
	case lderrors.IsRecoverableError(err):
		return ExitTempFail
	case errors.Is(err, lderrors.ErrStoreUnavailable),
		errors.Is(err, lderrors.ErrLockHeld),
		errors.Is(err, lderrors.ErrMigrationLocked):
		return ExitUnavailable
	default:
		return ExitFailure
	}
}

// NotFound returns a user error for a missing record. The sentinel keeps the
// suggestion lookup working.
func NotFound(sentinel error, id string) error {
	return fmt.Errorf("%w: %s", sentinel, id)
}

// ReportError writes err in the context's output format.
func (c *Context) ReportError(err error) {
	if err == nil {
		return
	}
	if c.IsJSON() {
		status := "error"
		if lderrors.IsUserError(err) {
			status = "invalid"
		}
		_ = c.JSONFormatter().JSON(struct {
			Status     string `json:"status"`
			Error      string `json:"error"`
			Category   string `json:"category"`
			Suggestion string `json:"suggestion,omitempty"`
		}{
			Status:     status,
			Error:      err.Error(),
			Category:   lderrors.Classify(err).String(),
			Suggestion: lderrors.GetSuggestion(err),
		})
		return
	}
	if c.Debug {
		c.CLIFormatter().Error(lderrors.FormatDebugError(err))
		return
	}
	c.CLIFormatter().Error(lderrors.FormatUserError(err))
}
