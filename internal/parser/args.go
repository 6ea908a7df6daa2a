// Package parser turns command-line input into queue items, dispatch
// times and durations.
package parser

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

// MaxSlugLength is the maximum length of a derived name.
const MaxSlugLength = 50

// ParseItems parses push arguments into notification items.
//
// An item type word ("push", "email") starts a new item; key=value pairs
// add data to the current item. Pairs before any type word belong to an
// implicit push item. Quoted values may contain spaces when the whole
// expression is passed as one argument:
//
//	push title="Shift starts" body=now email subject=Reminder
func ParseItems(args []string) ([]model.NotificationItem, error) {
	tokens := tokenize(strings.Join(quoteArgs(args), " "))

	var items []model.NotificationItem
	current := -1

	for _, token := range tokens {
		if t := model.NotificationItemType(strings.ToLower(token)); t == model.ItemPush || t == model.ItemEmail {
			items = append(items, model.NotificationItem{Type: t, Data: map[string]string{}})
			current = len(items) - 1
			continue
		}

		key, value, ok := strings.Cut(token, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.NewUserErrorWithField("item", token,
				"Expected an item type or key=value",
				"Use 'push title=Hello body=\"On call\"' or 'email subject=Hi'")
		}

		if current < 0 {
			items = append(items, model.NotificationItem{Type: model.ItemPush, Data: map[string]string{}})
			current = 0
		}
		items[current].Data[key] = value
	}

	if len(items) == 0 {
		return nil, errors.NewUserError("At least one notification item is required",
			"Add data such as title=Hello, or an item type: push, email")
	}
	return items, nil
}

// quoteArgs re-quotes arguments the shell already split so tokenize keeps
// values with spaces together.
func quoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if ok && strings.ContainsAny(value, " \t") && !strings.ContainsAny(value, `"'`) {
			arg = fmt.Sprintf("%s=%q", key, value)
		}
		out[i] = arg
	}
	return out
}

// tokenize splits input into tokens, preserving quoted strings.
func tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, r := range input {
		if (r == '"' || r == '\'') && !inQuote {
			inQuote = true
			quoteChar = r
			continue
		}
		if r == quoteChar && inQuote {
			inQuote = false
			quoteChar = 0
			continue
		}
		if r == ' ' && !inQuote {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// Slugify converts a display name to a lowercase identifier.
// Example: "Ops Alerts (EU)!" -> "ops-alerts-eu"
func Slugify(displayName string) string {
	result := strings.ToLower(strings.TrimSpace(displayName))

	var sb strings.Builder
	for _, r := range result {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			sb.WriteRune(r)
		case r == '-' || r == ' ' || r == '.':
			sb.WriteRune('-')
		}
	}
	result = sb.String()

	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-_")

	if len(result) > MaxSlugLength {
		result = strings.TrimRight(result[:MaxSlugLength], "-")
	}
	return result
}

// WebhookNameFromURL derives a default webhook name from its host, for
// example "hooks.slack.com" -> "hooks-slack-com".
func WebhookNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return Slugify(u.Hostname())
}
