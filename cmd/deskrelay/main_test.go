package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/memohai/deskrelay/internal/config"
)

func TestAppGraphIsComplete(t *testing.T) {
	t.Parallel()

	require.NoError(t, fx.ValidateApp(appOptions(configOptions{})...))
}

func TestPrintConfigSummaryMasksSecrets(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Discord.BotToken = "discord-secret-token"
	cfg.Chatwoot.BaseURL = "https://chat.example.com"
	cfg.Chatwoot.APIAccessToken = "chatwoot-secret-token"
	cfg.Chatwoot.InboxIdentifier = "inbox-1"
	cfg.Server.WebhookSecret = "webhook-secret-value"

	var out bytes.Buffer
	require.NoError(t, printConfigSummary(&out, cfg))

	text := out.String()
	assert.Contains(t, text, "configuration OK")
	assert.Contains(t, text, "https://chat.example.com")
	assert.Contains(t, text, "not configured")
	assert.NotContains(t, text, "discord-secret-token")
	assert.NotContains(t, text, "chatwoot-secret-token")
	assert.NotContains(t, text, "webhook-secret-value")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "check-config", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func TestVersionCommandPrintsBuildInfo(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "commit")
}
