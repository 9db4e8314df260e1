package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/deskrelay/internal/channel"
	"github.com/memohai/deskrelay/internal/channel/adapters/discord"
	"github.com/memohai/deskrelay/internal/chatwoot"
	"github.com/memohai/deskrelay/internal/config"
	"github.com/memohai/deskrelay/internal/handlers"
	"github.com/memohai/deskrelay/internal/healthcheck"
	channelchecker "github.com/memohai/deskrelay/internal/healthcheck/checkers/channel"
	helpdeskchecker "github.com/memohai/deskrelay/internal/healthcheck/checkers/helpdesk"
	"github.com/memohai/deskrelay/internal/logger"
	"github.com/memohai/deskrelay/internal/media"
	"github.com/memohai/deskrelay/internal/metrics"
	"github.com/memohai/deskrelay/internal/relay"
	"github.com/memohai/deskrelay/internal/server"
	"github.com/memohai/deskrelay/internal/session"
	"github.com/memohai/deskrelay/internal/version"
)

func runServe(ctx context.Context, opts configOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := newApp(opts)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	sig := <-app.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if sig.ExitCode != 0 {
		return fmt.Errorf("deskrelay exited with code %d", sig.ExitCode)
	}
	return nil
}

func newApp(opts configOptions) *fx.App {
	return fx.New(appOptions(opts)...)
}

func appOptions(opts configOptions) []fx.Option {
	return []fx.Option{
		fx.Supply(opts),
		fx.Provide(
			provideConfig,
			provideLogger,
			session.NewStore,
			provideMetrics,
			provideFetcher,
			provideChatwootClient,
			provideDiscordAdapter,
			provideInbound,
			provideOutbound,
			provideChannelManager,
			provideHealthAggregator,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewHealthHandler),
			provideServerHandler(provideMetricsHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			logStartupSummary,
			startChannelManager,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	}
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig(opts configOptions) (config.Config, error) {
	cfg, err := config.Load(opts.path, opts.envFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideMetrics(store *session.Store) *metrics.Metrics {
	return metrics.New(store.Len)
}

func provideFetcher(cfg config.Config) *media.Fetcher {
	return media.NewFetcher(nil, cfg.Chatwoot.RequestTimeout.Duration, cfg.Relay.MaxAttachmentBytes)
}

func provideChatwootClient(log *slog.Logger, cfg config.Config, fetcher *media.Fetcher, m *metrics.Metrics) *chatwoot.Client {
	return chatwoot.NewClient(log, chatwoot.Config{
		BaseURL:         cfg.Chatwoot.BaseURL,
		APIAccessToken:  cfg.Chatwoot.APIAccessToken,
		InboxIdentifier: cfg.Chatwoot.InboxIdentifier,
		AccountID:       cfg.Chatwoot.AccountID,
		Timeout:         cfg.Chatwoot.RequestTimeout.Duration,
	}, chatwoot.WithAttachmentSource(fetcher), chatwoot.WithObserver(m))
}

func provideDiscordAdapter(log *slog.Logger, cfg config.Config, fetcher *media.Fetcher) (*discord.DiscordAdapter, error) {
	return discord.NewDiscordAdapter(log, discord.Config{
		BotToken:      cfg.Discord.BotToken,
		StatusMessage: cfg.Discord.StatusMessage,
		StatusType:    cfg.Discord.StatusType,
	}, fetcher)
}

func provideInbound(log *slog.Logger, store *session.Store, client *chatwoot.Client, adapter *discord.DiscordAdapter, m *metrics.Metrics) *relay.Inbound {
	return relay.NewInbound(log, store, client, adapter, m)
}

func provideOutbound(log *slog.Logger, store *session.Store, adapter *discord.DiscordAdapter, m *metrics.Metrics) *relay.Outbound {
	return relay.NewOutbound(log, store, adapter, m)
}

func provideChannelManager(log *slog.Logger, cfg config.Config, adapter *discord.DiscordAdapter, inbound *relay.Inbound) *channel.Manager {
	return channel.NewManager(log, adapter, inbound.Handle, channel.ManagerOptions{
		QueueSize: cfg.Relay.InboundQueueSize,
		Workers:   cfg.Relay.InboundWorkers,
	})
}

func provideHealthAggregator(log *slog.Logger, cfg config.Config, manager *channel.Manager, store *session.Store) *healthcheck.Aggregator {
	return healthcheck.NewAggregator(
		channelchecker.NewChecker(log, manager),
		helpdeskchecker.NewChecker(helpdeskchecker.Settings{
			BaseURL:         cfg.Chatwoot.BaseURL,
			InboxIdentifier: cfg.Chatwoot.InboxIdentifier,
			UploadEnabled:   cfg.Chatwoot.UploadEnabled(),
		}, store),
	)
}

func provideMetricsHandler(m *metrics.Metrics) *handlers.MetricsHandler {
	return handlers.NewMetricsHandler(m.Handler())
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, outbound *relay.Outbound) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, outbound, cfg.Server.WebhookSecret)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func logStartupSummary(log *slog.Logger, cfg config.Config) {
	log.Info("starting deskrelay", slog.String("version", version.GetInfo()))
	accountID := cfg.Chatwoot.AccountID
	if accountID == "" {
		accountID = "not configured"
	}
	log.Info("chatwoot configuration",
		slog.String("base_url", cfg.Chatwoot.BaseURL),
		slog.String("inbox_identifier", cfg.Chatwoot.InboxIdentifier),
		slog.String("account_id", accountID),
		slog.String("api_access_token", config.Mask(cfg.Chatwoot.APIAccessToken)),
	)
	if !cfg.Chatwoot.UploadEnabled() {
		log.Warn("chatwoot account id missing; attachments will be relayed as links")
	}
	log.Info("webhook endpoint", slog.String("addr", cfg.Server.Addr), slog.String("path", "/webhook"))
}

func startChannelManager(lc fx.Lifecycle, channelManager *channel.Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return channelManager.Start(ctx) },
		OnStop:  func(stopCtx context.Context) error { cancel(); return channelManager.Shutdown(stopCtx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
