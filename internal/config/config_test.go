package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.Discord.BotToken = "token"
	cfg.Discord.StatusMessage = "DM me for support"
	cfg.Chatwoot.BaseURL = "https://chatwoot.example.com"
	cfg.Chatwoot.APIAccessToken = "secret"
	cfg.Chatwoot.InboxIdentifier = "inbox-1"
	return cfg
}

func TestValidateReportsMissingByEnvName(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := Validate(cfg)
	var missing *MissingError
	require.True(t, errors.As(err, &missing), "expected MissingError, got %v", err)
	assert.ElementsMatch(t, []string{
		"DISCORD_BOT_TOKEN",
		"DISCORD_BOT_STATUS_MESSAGE",
		"CHATWOOT_BASE_URL",
		"CHATWOOT_API_ACCESS_TOKEN",
		"CHATWOOT_INBOX_IDENTIFIER",
	}, missing.Fields)
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(validConfig()))
	assert.False(t, validConfig().Chatwoot.UploadEnabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Chatwoot.BaseURL = "not a url"
	cfg.Relay.InboundWorkers = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHATWOOT_BASE_URL (url)")
	assert.Contains(t, err.Error(), "Relay.InboundWorkers (gte)")
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"DISCORD_BOT_TOKEN":          " tok ",
		"DISCORD_BOT_STATUS_MESSAGE": "Helping",
		"DISCORD_BOT_STATUS_TYPE":    "Watching",
		"CHATWOOT_BASE_URL":          "https://cw.example.com/",
		"CHATWOOT_API_ACCESS_TOKEN":  "api",
		"CHATWOOT_INBOX_IDENTIFIER":  "inbox",
		"CHATWOOT_ACCOUNT_ID":        "3",
		"WEBHOOK_PORT":               "4000",
	}
	cfg := Default()
	applyEnv(&cfg, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})

	assert.Equal(t, "tok", cfg.Discord.BotToken)
	assert.Equal(t, "Watching", cfg.Discord.StatusType)
	assert.Equal(t, "https://cw.example.com", cfg.Chatwoot.BaseURL)
	assert.Equal(t, ":4000", cfg.Server.Addr)
	assert.True(t, cfg.Chatwoot.UploadEnabled())
	require.NoError(t, Validate(cfg))
}

func TestApplyEnvAddressPassthrough(t *testing.T) {
	t.Parallel()

	cfg := Default()
	applyEnv(&cfg, func(key string) (string, bool) {
		if key == "WEBHOOK_PORT" {
			return "127.0.0.1:9000", true
		}
		return "", false
	})
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[log]
level = "debug"

[server]
addr = ":8088"

[discord]
bot_token = "file-token"
status_message = "Support"
status_type = "Listening"

[chatwoot]
base_url = "https://support.example.com"
api_access_token = "file-api"
inbox_identifier = "abc"
request_timeout = "5s"

[relay]
inbound_workers = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DISCORD_BOT_TOKEN", "")

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":8088", cfg.Server.Addr)
	assert.Equal(t, "file-token", cfg.Discord.BotToken)
	assert.Equal(t, 5*time.Second, cfg.Chatwoot.RequestTimeout.Duration)
	assert.Equal(t, 2, cfg.Relay.InboundWorkers)
	assert.Equal(t, DefaultInboundQueueSize, cfg.Relay.InboundQueueSize)
}

func TestLoadEnvFileOverridesFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "DISCORD_BOT_TOKEN=env-token\nDISCORD_BOT_STATUS_MESSAGE=Hi\nCHATWOOT_BASE_URL=https://cw.example.com\nCHATWOOT_API_ACCESS_TOKEN=a\nCHATWOOT_INBOX_IDENTIFIER=i\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))
	for _, key := range []string{"DISCORD_BOT_TOKEN", "DISCORD_BOT_STATUS_MESSAGE", "CHATWOOT_BASE_URL", "CHATWOOT_API_ACCESS_TOKEN", "CHATWOOT_INBOX_IDENTIFIER"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(filepath.Join(dir, "absent.toml"), envPath)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Discord.BotToken)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
}

func TestMask(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "MISSING", Mask(""))
	assert.Equal(t, "****", Mask("abc"))
	assert.Equal(t, "****5678", Mask("12345678"))
}
