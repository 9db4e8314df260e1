// Package helpdeskchecker reports the helpdesk integration configuration and
// the number of established sessions.
package helpdeskchecker

import (
	"context"
	"net/url"
	"strings"

	"github.com/memohai/deskrelay/internal/healthcheck"
)

const (
	checkTypeConfig   = "helpdesk.config"
	checkTypeSessions = "helpdesk.sessions"
)

// Settings is the helpdesk configuration under check.
type Settings struct {
	BaseURL         string
	InboxIdentifier string
	UploadEnabled   bool
}

// SessionCounter reports how many sessions are held.
type SessionCounter interface {
	Len() int
}

// Checker evaluates the helpdesk configuration.
type Checker struct {
	settings Settings
	sessions SessionCounter
}

// NewChecker creates a helpdesk checker. sessions may be nil.
func NewChecker(settings Settings, sessions SessionCounter) *Checker {
	return &Checker{settings: settings, sessions: sessions}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	checks := []healthcheck.CheckResult{c.configCheck()}
	if c.sessions != nil {
		count := c.sessions.Len()
		checks = append(checks, healthcheck.CheckResult{
			ID:       checkTypeSessions,
			Type:     checkTypeSessions,
			Status:   healthcheck.StatusOK,
			Summary:  "Sessions are held in memory.",
			Metadata: map[string]any{"count": count},
		})
	}
	return checks
}

func (c *Checker) configCheck() healthcheck.CheckResult {
	item := healthcheck.CheckResult{
		ID:   checkTypeConfig,
		Type: checkTypeConfig,
		Metadata: map[string]any{
			"inbox_identifier": c.settings.InboxIdentifier,
			"upload_enabled":   c.settings.UploadEnabled,
		},
	}
	parsed, err := url.Parse(strings.TrimSpace(c.settings.BaseURL))
	switch {
	case err != nil || parsed.Scheme == "" || parsed.Host == "":
		item.Status = healthcheck.StatusError
		item.Summary = "Helpdesk base URL is invalid."
		item.Detail = c.settings.BaseURL
	case strings.TrimSpace(c.settings.InboxIdentifier) == "":
		item.Status = healthcheck.StatusError
		item.Summary = "Helpdesk inbox identifier is missing."
	case !c.settings.UploadEnabled:
		item.Status = healthcheck.StatusWarn
		item.Summary = "Attachment upload is disabled; files are relayed as links."
		item.Detail = "CHATWOOT_ACCOUNT_ID is not set"
	default:
		item.Status = healthcheck.StatusOK
		item.Summary = "Helpdesk is configured."
	}
	if parsed != nil {
		item.Metadata["host"] = parsed.Host
	}
	return item
}
