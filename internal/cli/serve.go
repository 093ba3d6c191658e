package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dolsel/livetv/internal/app"
	"github.com/dolsel/livetv/pkg/config"
	"github.com/dolsel/livetv/pkg/logger"
)

func init() {
	serveCmd.Flags().String("addr", "", "listen address (host:port)")
	serveCmd.Flags().String("db", "", "pebble database directory")
	serveCmd.Flags().String("log-level", "", "debug, info, warn or error")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is fine
		_ = godotenv.Load(".env")

		var ov config.Overrides
		ov.Addr, _ = cmd.Flags().GetString("addr")
		ov.DBPath, _ = cmd.Flags().GetString("db")
		ov.LogLevel, _ = cmd.Flags().GetString("log-level")

		cfg, err := config.Load(configPath(cmd), ov)
		if err != nil {
			return err
		}
		if err := logger.Init(logger.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Sink:   cfg.Logging.Sink,
		}); err != nil {
			return err
		}
		defer logger.Sync()

		a, err := app.New(cfg, build)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return a.Run(ctx)
	},
}
