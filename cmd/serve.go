package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"devops-rag/internal/config"
	"devops-rag/internal/server"
)

func newServeCmd(getConfig func() *config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.Ping(ctx); err != nil {
				log.Warn().Err(err).Str("ollama_url", cfg.Ollama.BaseURL).Msg("Ollama is not reachable")
			}
			// A failed build is retried by the first request.
			if err := a.service.Init(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Failed to build knowledge base index")
			}
			if ctx.Err() != nil {
				return nil
			}
			return server.Run(ctx, a.service, cfg.Server)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
