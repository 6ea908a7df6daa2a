// Package validate provides input validation helpers for the livedesk CLI.
package validate

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

const (
	// MaxIDLength is the maximum length for user, team and room ids.
	MaxIDLength = 64
	// MaxURLLength is the maximum length for a URL.
	MaxURLLength = 2048
	// MaxNameLength is the maximum length for a business hour name.
	MaxNameLength = 128
	// MaxItemValueLength is the maximum length of one notification item value.
	MaxItemValueLength = 4096
	// MaxRoleLength is the maximum length of a team role.
	MaxRoleLength = 64
)

// idRegex validates ids: no whitespace and no separators used in keys.
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._@-]*$`)

// ID validates a user, team or room id. field names the argument in the
// error.
func ID(field, id string) error {
	if id == "" {
		return errors.NewUserError(field+" cannot be empty", "Provide a valid "+field)
	}
	if len(id) > MaxIDLength {
		return errors.NewUserErrorWithField(field, id,
			"Id too long",
			"Ids must be "+strconv.Itoa(MaxIDLength)+" characters or fewer")
	}
	if !idRegex.MatchString(id) {
		return errors.NewUserErrorWithField(field, id,
			"Invalid id format",
			"Ids must start with a letter or number and contain no spaces or slashes")
	}
	return nil
}

// Name validates a business hour name. Empty is allowed.
func Name(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.NewUserErrorWithField("name", name,
			"Name too long",
			"Names must be 128 characters or fewer")
	}
	if StripControlChars(name) != name {
		return errors.NewUserErrorWithField("name", name,
			"Name contains control characters",
			"Use printable characters only")
	}
	return nil
}

// ItemValue validates one notification item value.
func ItemValue(key, value string) error {
	if utf8.RuneCountInString(value) > MaxItemValueLength {
		return errors.NewUserErrorWithField(key, TruncateString(value, 20),
			"Value too long",
			"Item values must be 4096 characters or fewer")
	}
	return nil
}

// Roles validates team role names.
func Roles(roles []string) error {
	for _, role := range roles {
		if strings.TrimSpace(role) == "" || strings.ContainsAny(role, " \t\n,") {
			return errors.NewUserErrorWithField("role", role,
				"Invalid role",
				"Roles are single words such as owner or moderator")
		}
		if len(role) > MaxRoleLength {
			return errors.NewUserErrorWithField("role", role,
				"Role too long",
				"Roles must be 64 characters or fewer")
		}
	}
	return nil
}

// WebhookName validates a webhook name.
func WebhookName(name string) error {
	if !model.IsValidWebhookName(name) {
		return errors.NewUserErrorWithField("name", name,
			"Invalid webhook name",
			"Webhook names start with a letter or number, contain only letters, numbers, dashes or underscores and are at most 50 characters")
	}
	return nil
}

// WebhookType validates a webhook type. Empty means auto-detect.
func WebhookType(t string) error {
	if t == "" || model.IsValidWebhookType(t) {
		return nil
	}
	return errors.NewUserErrorWithField("type", t,
		"Unknown webhook type",
		"Use one of: "+strings.Join(model.ValidWebhookTypes(), ", "))
}

// Timezone validates an IANA timezone name and returns its location.
func Timezone(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.NewUserErrorWithField("timezone", name,
			"Unknown timezone",
			errors.Suggestions[errors.ErrInvalidTimezone])
	}
	return loc, nil
}

// ListenAddr validates a host:port listen address. Empty disables the
// listener.
func ListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.NewUserErrorWithField("listen_addr", addr,
			"Invalid listen address",
			"Use host:port, for example 127.0.0.1:9464")
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return errors.NewUserErrorWithField("listen_addr", addr,
			"Invalid port",
			"Ports are between 0 and 65535")
	}
	return nil
}

// URL validates a URL for use as a webhook endpoint.
func URL(rawURL string) error {
	if rawURL == "" {
		return errors.NewUserError("URL cannot be empty", "Provide a valid URL")
	}
	if len(rawURL) > MaxURLLength {
		return errors.NewUserError("URL too long", "URLs must be 2048 characters or fewer")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL format",
			"Provide a valid URL starting with https://")
	}

	// Check scheme
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL scheme",
			"URLs must use https:// (or http:// for localhost)")
	}

	// Check hostname exists
	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL: missing hostname",
			"Provide a valid URL like https://example.com/webhook")
	}

	// Check for localhost (http allowed)
	isLocalhost := hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"

	// Require HTTPS for non-localhost
	if parsed.Scheme == "http" && !isLocalhost {
		return errors.NewUserErrorWithField("url", rawURL,
			"HTTP not allowed for external URLs",
			"Use https:// for security. HTTP is only allowed for localhost.")
	}

	// Check for internal IPs (SSRF protection)
	if !isLocalhost {
		if err := checkInternalIP(hostname); err != nil {
			return err
		}
	}

	return nil
}

// checkInternalIP checks if a hostname resolves to an internal IP.
func checkInternalIP(hostname string) error {
	// First check if it's a direct IP
	if ip := net.ParseIP(hostname); ip != nil {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Internal IP addresses not allowed",
				"Webhook URLs must point to external services")
		}
		return nil
	}

	// Try to resolve hostname
	ips, err := net.LookupIP(hostname)
	if err != nil {
		// DNS resolution failed - this is OK, the webhook will fail later
		return nil
	}

	for _, ip := range ips {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Hostname resolves to internal IP",
				"Webhook URLs must point to external services")
		}
	}

	return nil
}

// isInternalIP checks if an IP is in a private/internal range.
func isInternalIP(ip net.IP) bool {
	// Private ranges
	privateRanges := []string{
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"127.0.0.0/8",    // Loopback (except explicit localhost check)
		"169.254.0.0/16", // Link-local
		"fc00::/7",       // IPv6 private
		"fe80::/10",      // IPv6 link-local
		"::1/128",        // IPv6 loopback
	}

	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}

	return false
}

// NonEmpty validates that a string is not empty.
func NonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewUserError(
			field+" cannot be empty",
			"Provide a value for "+field)
	}
	return nil
}

// InRange validates that an integer is within a range.
func InRange(field string, value, min, max int) error {
	if value < min || value > max {
		return errors.NewUserErrorWithField(field, strconv.Itoa(value),
			"Value out of range",
			"Must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return nil
}
