package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"microspark/internal/app"
	"microspark/internal/config"
	"microspark/internal/server"
)

var (
	servePort string
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and block until SIGINT or SIGTERM.

On shutdown the server stops accepting connections, waits for in-flight
requests up to SHUTDOWN_TIMEOUT and then closes the cache.

Examples:
  # Listen on PORT from the environment (default 8080)
  microspark serve

  # Override the port and load a specific env file
  microspark serve --port 9090 --env-file ./prod.env`,
	RunE: runServe,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the registered routes",
	RunE:  runRoutes,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (overrides PORT)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "interface to bind (overrides HOST)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routesCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(func(cfg *config.Config) {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	srvCfg := server.DefaultConfig(cfg.Server.Addr())
	srvCfg.Logger = logger
	srvCfg.ReadTimeout = cfg.Server.ReadTimeout
	srvCfg.WriteTimeout = cfg.Server.WriteTimeout
	srvCfg.IdleTimeout = cfg.Server.IdleTimeout
	srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	srvCfg.TLSCertFile = cfg.Server.TLSCertFile
	srvCfg.TLSKeyFile = cfg.Server.TLSKeyFile

	return server.Start(ctx, a.Handler, srvCfg, func(addr string) {
		logger.Info("Listening on port", "addr", addr, "version", cfg.App.Version)
	}, a.Resources()...)
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(nil)
	if err != nil {
		return err
	}
	// routes are listed without touching Redis
	cfg.Redis.Addr = ""

	a, err := app.New(context.Background(), cfg, logger, &app.Options{Registerer: prometheus.NewRegistry()})
	if err != nil {
		return err
	}
	defer a.Cache.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATTERN\tSTATIC")
	for _, e := range a.Engine.Routes() {
		fmt.Fprintf(w, "%s\t%s\t%v\n", e.Method, e.Pattern, e.Handler == nil)
	}
	return w.Flush()
}

// loadConfig reads the configuration, applies flag overrides and builds the
// application logger: JSON in production, text otherwise.
func loadConfig(override func(*config.Config)) (*config.Config, *slog.Logger, error) {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.LoadConfig(bootstrap, envFiles()...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid flags: %w", err)
		}
	}

	opts := &slog.HandlerOptions{Level: cfg.App.LogLevel}
	var logger *slog.Logger
	if cfg.IsProduction() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}
