package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"devops-rag/internal/config"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "devops-rag",
		Short:         "Answer questions about the DevOps knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := setupLogger(cfg.Log); err != nil {
				return err
			}
			log.Debug().Interface("config", cfg).Msg("Loaded config")
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the config file")

	getConfig := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(getConfig),
		newAskCmd(getConfig),
		newModelsCmd(getConfig),
	)
	return root
}

// setupLogger configures the global zerolog logger. Logs go to stderr so
// command output on stdout stays clean.
func setupLogger(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	switch cfg.Format {
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	case "json":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	zerolog.DefaultContextLogger = &log.Logger
	return nil
}
