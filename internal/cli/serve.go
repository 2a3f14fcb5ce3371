package cli

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lucahq/luca/internal/config"
	"github.com/lucahq/luca/internal/daemon"
	"github.com/lucahq/luca/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Luca service",
	Long: `Run the Luca service in the foreground. The service exposes the
query API, the audit event stream and Prometheus metrics over HTTP,
and stops cleanly on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	lg, err := logger.New(logger.Config{
		Level:     level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	defer lg.Close()

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher(loader, func(next *config.Config) {
		// timeouts and thresholds need a restart; only the log level
		// applies live
		if parsed, perr := zerolog.ParseLevel(next.Logging.Level); perr == nil {
			zerolog.SetGlobalLevel(parsed)
			log.Info().Str("level", next.Logging.Level).Msg("Log level updated")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		defer watcher.Stop()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}
