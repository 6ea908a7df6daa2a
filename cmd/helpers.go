package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/output"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// confirm asks a yes/no question on the terminal. Without a terminal, or
// in JSON mode, it refuses so scripts have to pass --force.
func confirm(question string) (bool, error) {
	f := configFormatter()
	if ctx != nil {
		f = ctx.Formatter
	}
	if f.Format == output.FormatJSON || !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, lderrors.NewUserError(
			"Confirmation required",
			"Pass --force to skip the prompt when not running in a terminal")
	}
	f.Printf("%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// formatTimeAgo formats a time as a human-readable relative time.
func formatTimeAgo(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 48*time.Hour:
		return "yesterday"
	default:
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d days ago", days)
	}
}

// errorString returns the error message or empty string if nil.
func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
