// real-estate: MCP server for browsing property listings on a map widget.
//
// Usage:
//
//	real-estate serve      # run the MCP server (stdio, http or sse)
//	real-estate version    # print the version
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/mcp-apps/internal/apprun"
	"github.com/RobinCoderZhao/mcp-apps/internal/realestate"
)

const serverName = "real-estate-map"

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "real-estate",
		Short:        "MCP server for property listings",
		SilenceUsage: true,
	}

	var flags apprun.Flags
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&flags.EnvFiles, "env-file", nil, "dotenv files to load (default .env)")

	rootCmd.AddCommand(serveCmd(&flags))
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

	catalog, err := realestate.LoadCatalog(cfg.Server.BaseURL)
	if err != nil {
		return err
	}
	if cfg.Widget.GoogleMapsAPIKey == "" {
		logger.Warn("GOOGLE_MAPS_API_KEY is not set, the map widget will not load")
	}

	s := env.NewServer(serverName, version)
	err = realestate.Register(s, catalog, realestate.WidgetOptions{
		GoogleMapsAPIKey: cfg.Widget.GoogleMapsAPIKey,
		BaseURL:          cfg.Server.BaseURL,
	})
	if err != nil {
		return err
	}

	routes := map[string]http.Handler{"/": realestate.BannerHandler()}
	if err := env.Serve(ctx, s, routes); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}
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
