package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/memohai/deskrelay/internal/config"
)

func newCheckConfigCmd(opts *configOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then print it with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.path, opts.envFile)
			if err != nil {
				return err
			}
			return printConfigSummary(cmd.OutOrStdout(), cfg)
		},
	}
}

func printConfigSummary(w io.Writer, cfg config.Config) error {
	accountID := cfg.Chatwoot.AccountID
	if accountID == "" {
		accountID = "not configured (attachments are sent as links)"
	}
	secret := "disabled"
	if cfg.Server.WebhookSecret != "" {
		secret = config.Mask(cfg.Server.WebhookSecret)
	}
	_, err := fmt.Fprintf(w, `configuration OK
  discord.bot_token          %s
  discord.status             %s %q
  chatwoot.base_url          %s
  chatwoot.api_access_token  %s
  chatwoot.inbox_identifier  %s
  chatwoot.account_id        %s
  chatwoot.request_timeout   %s
  server.addr                %s
  server.webhook_secret      %s
  relay.inbound_queue_size   %d
  relay.inbound_workers      %d
  relay.max_attachment_bytes %d
`,
		config.Mask(cfg.Discord.BotToken),
		cfg.Discord.StatusType, cfg.Discord.StatusMessage,
		cfg.Chatwoot.BaseURL,
		config.Mask(cfg.Chatwoot.APIAccessToken),
		cfg.Chatwoot.InboxIdentifier,
		accountID,
		cfg.Chatwoot.RequestTimeout.Duration,
		cfg.Server.Addr,
		secret,
		cfg.Relay.InboundQueueSize,
		cfg.Relay.InboundWorkers,
		cfg.Relay.MaxAttachmentBytes,
	)
	return err
}
