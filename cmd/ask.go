package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"devops-rag/internal/config"
	"devops-rag/internal/helper"
)

func newAskCmd(getConfig func() *config.Config) *cobra.Command {
	var (
		model  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if model == "" {
				model = cfg.ChatLLM.Model
			}
			if model == "" {
				return fmt.Errorf("no chat model: pass --model or set chat_llm.model")
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")
			answer, err := a.service.Ask(cmd.Context(), model, question)
			if err != nil {
				return err
			}

			if asJSON {
				helper.PrettyPrint(os.Stdout, map[string]string{
					"model":    model,
					"question": question,
					"answer":   answer,
				})
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "chat model (defaults to chat_llm.model)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}
