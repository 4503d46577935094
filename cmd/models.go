package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"devops-rag/internal/config"
	"devops-rag/internal/helper"
	"devops-rag/internal/llmservice"
)

func newModelsCmd(getConfig func() *config.Config) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models available on the Ollama server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			admin, err := llmservice.NewOllamaAdmin(cfg.Ollama.BaseURL, adminTimeout)
			if err != nil {
				return err
			}
			names, err := admin.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to connect to Ollama at %s: %w", admin.BaseURL(), err)
			}
			if asJSON {
				helper.PrettyPrint(os.Stdout, names)
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the names as JSON")
	return cmd
}
