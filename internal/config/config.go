package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath         = "config.toml"
	DefaultEnvFile            = ".env"
	DefaultHTTPAddr           = ":3000"
	DefaultRequestTimeout     = 15 * time.Second
	DefaultInboundQueueSize   = 256
	DefaultInboundWorkers     = 4
	DefaultMaxAttachmentBytes = 25 * 1024 * 1024
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Discord  DiscordConfig  `toml:"discord"`
	Chatwoot ChatwootConfig `toml:"chatwoot"`
	Relay    RelayConfig    `toml:"relay"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr          string `toml:"addr" validate:"required"`
	WebhookSecret string `toml:"webhook_secret"`
}

type DiscordConfig struct {
	BotToken      string `toml:"bot_token" validate:"required"`
	StatusMessage string `toml:"status_message" validate:"required"`
	StatusType    string `toml:"status_type" validate:"required"`
}

type ChatwootConfig struct {
	BaseURL         string `toml:"base_url" validate:"required,url"`
	APIAccessToken  string `toml:"api_access_token" validate:"required"`
	InboxIdentifier string `toml:"inbox_identifier" validate:"required"`
	// AccountID enables binary attachment upload through the account-scoped API.
	AccountID      string   `toml:"account_id"`
	RequestTimeout Duration `toml:"request_timeout"`
}

type RelayConfig struct {
	InboundQueueSize   int   `toml:"inbound_queue_size" validate:"gte=1"`
	InboundWorkers     int   `toml:"inbound_workers" validate:"gte=1"`
	MaxAttachmentBytes int64 `toml:"max_attachment_bytes" validate:"gte=1"`
}

// UploadEnabled reports whether the account-scoped credential is configured.
func (c ChatwootConfig) UploadEnabled() bool {
	return strings.TrimSpace(c.AccountID) != ""
}

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used before the file and environment are applied.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Discord: DiscordConfig{
			StatusType: "Playing",
		},
		Chatwoot: ChatwootConfig{
			RequestTimeout: Duration{DefaultRequestTimeout},
		},
		Relay: RelayConfig{
			InboundQueueSize:   DefaultInboundQueueSize,
			InboundWorkers:     DefaultInboundWorkers,
			MaxAttachmentBytes: DefaultMaxAttachmentBytes,
		},
	}
}

// Load reads path (optional), loads envFile into the process environment when
// present, then applies environment overrides and validates the result.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load env file: %w", err)
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	applyEnv(&cfg, os.LookupEnv)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Log.Level, "LOG_LEVEL")
	set(&cfg.Log.Format, "LOG_FORMAT")
	set(&cfg.Discord.BotToken, "DISCORD_BOT_TOKEN")
	set(&cfg.Discord.StatusMessage, "DISCORD_BOT_STATUS_MESSAGE")
	set(&cfg.Discord.StatusType, "DISCORD_BOT_STATUS_TYPE")
	set(&cfg.Chatwoot.BaseURL, "CHATWOOT_BASE_URL")
	set(&cfg.Chatwoot.APIAccessToken, "CHATWOOT_API_ACCESS_TOKEN")
	set(&cfg.Chatwoot.InboxIdentifier, "CHATWOOT_INBOX_IDENTIFIER")
	set(&cfg.Chatwoot.AccountID, "CHATWOOT_ACCOUNT_ID")
	set(&cfg.Server.WebhookSecret, "WEBHOOK_SECRET")

	if port, ok := lookup("WEBHOOK_PORT"); ok && strings.TrimSpace(port) != "" {
		port = strings.TrimSpace(port)
		if _, err := strconv.Atoi(port); err == nil {
			cfg.Server.Addr = ":" + port
		} else {
			cfg.Server.Addr = port
		}
	}
	cfg.Chatwoot.BaseURL = strings.TrimRight(cfg.Chatwoot.BaseURL, "/")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// MissingError lists required settings that were not provided, named by the
// environment variable that supplies them.
type MissingError struct {
	Fields []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Fields, ", ")
}

// Validate checks required fields and value constraints.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	missing := &MissingError{}
	var invalid []string
	for _, fe := range verrs {
		name := settingName(fe)
		if fe.Tag() == "required" {
			missing.Fields = append(missing.Fields, name)
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s)", name, fe.Tag()))
	}
	if len(missing.Fields) > 0 {
		return missing
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, ", "))
}

var envNames = map[string]string{
	"Config.Server.Addr":              "WEBHOOK_PORT",
	"Config.Discord.BotToken":         "DISCORD_BOT_TOKEN",
	"Config.Discord.StatusMessage":    "DISCORD_BOT_STATUS_MESSAGE",
	"Config.Discord.StatusType":       "DISCORD_BOT_STATUS_TYPE",
	"Config.Chatwoot.BaseURL":         "CHATWOOT_BASE_URL",
	"Config.Chatwoot.APIAccessToken":  "CHATWOOT_API_ACCESS_TOKEN",
	"Config.Chatwoot.InboxIdentifier": "CHATWOOT_INBOX_IDENTIFIER",
}

func settingName(fe validator.FieldError) string {
	if name, ok := envNames[fe.StructNamespace()]; ok {
		return name
	}
	return strings.TrimPrefix(fe.StructNamespace(), "Config.")
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "MISSING"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
