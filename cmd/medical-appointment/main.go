// medical-appointment: MCP server for finding doctors and booking appointments.
//
// Usage:
//
//	medical-appointment serve      # run the MCP server (stdio, http or sse)
//	medical-appointment migrate    # apply the Postgres migrations
//	medical-appointment seed       # load the fixture doctors and slots
//	medical-appointment version    # print the version
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/mcp-apps/internal/appconfig"
	"github.com/RobinCoderZhao/mcp-apps/internal/apprun"
	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
	"github.com/RobinCoderZhao/mcp-apps/internal/medical"
	"github.com/RobinCoderZhao/mcp-apps/internal/observability/metrics"
	"github.com/RobinCoderZhao/mcp-apps/internal/scheduling"
	"github.com/RobinCoderZhao/mcp-apps/pkg/notify"
)

const serverName = "medical-appointment"

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          serverName,
		Short:        "MCP server for doctor search and appointment booking",
		SilenceUsage: true,
	}

	var flags apprun.Flags
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&flags.EnvFiles, "env-file", nil, "dotenv files to load (default .env)")

	rootCmd.AddCommand(serveCmd(&flags))
	rootCmd.AddCommand(migrateCmd(&flags))
	rootCmd.AddCommand(seedCmd(&flags))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(flags *apprun.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *flags)
		},
	}
	cmd.Flags().StringVarP(&flags.Transport, "transport", "t", "", "transport: stdio, http or sse")
	cmd.Flags().StringVar(&flags.Addr, "addr", "", "listen address for http/sse, e.g. :8787")
	return cmd
}

func runServe(ctx context.Context, flags apprun.Flags) error {
	env, err := apprun.Load(flags)
	if err != nil {
		return err
	}
	logger := env.Logger.Logger
	cfg := env.Config

	handle, err := directory.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer handle.Close()

	format := medical.NewFormatter(cfg.Widget.Location())
	opts := []scheduling.Option{
		scheduling.WithLogger(logger),
		scheduling.WithRecorder(metrics.NewBookingMetrics(env.Registry)),
	}
	if dispatcher := newDispatcher(cfg.Notify, logger); dispatcher.Len() > 0 {
		opts = append(opts, scheduling.WithNotifier(medical.NewBookingNotifier(dispatcher, format)))
		logger.Info("booking notifications enabled", "channels", dispatcher.Len())
	}
	booker := scheduling.NewBooker(handle.Store, opts...)

	s := env.NewServer(serverName, version)
	err = medical.Register(s, handle.Store, booker, format, medical.WidgetOptions{
		WebAppURL:    cfg.Widget.WebAppURL,
		ExtraDomains: cfg.Widget.ExtraCSPDomains,
	})
	if err != nil {
		return err
	}

	if err := env.Serve(ctx, s, nil); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}
	return nil
}

func newDispatcher(cfg appconfig.NotifyConfig, logger *slog.Logger) *notify.Dispatcher {
	d := notify.NewDispatcher(logger)
	if cfg.WebhookURL != "" {
		headers := map[string]string{}
		if cfg.WebhookSecret != "" {
			headers["X-Webhook-Secret"] = cfg.WebhookSecret
		}
		d.Register(notify.NewWebhookNotifier(notify.WebhookConfig{URL: cfg.WebhookURL, Headers: headers}, nil))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		d.Register(notify.NewTelegramNotifier(notify.TelegramConfig{
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
		}, nil))
	}
	return d
}

func seedCmd(flags *apprun.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the fixture doctors and slots into the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			return runSeed(ctx, *flags)
		},
	}
}

func runSeed(ctx context.Context, flags apprun.Flags) error {
	env, err := apprun.Load(flags)
	if err != nil {
		return err
	}
	logger := env.Logger.Logger

	switch env.Config.Database.Driver {
	case directory.Memory, "":
		return errors.New("seed requires the sqlite or postgres driver; the memory driver loads fixtures on serve")
	}

	handle, err := directory.Open(ctx, env.Config.Database, logger)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer handle.Close()

	seeder, ok := handle.Store.(directory.Seeder)
	if !ok {
		return fmt.Errorf("driver %q cannot be seeded", env.Config.Database.Driver)
	}
	fx, err := directory.LoadFixtures(time.Now())
	if err != nil {
		return err
	}
	if err := seeder.Seed(ctx, fx); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger.Info("directory seeded", "doctors", len(fx.Practitioners), "slots", len(fx.Slots))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", serverName, version)
		},
	}
}
