package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edura/edura-core/internal/llm"
)

var promptFlags struct {
	context  string
	question string
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the lesson prompt template",
	Long: `Print the lesson prompt template served at /api/get-system-prompt.

With --question the template is rendered the way the openai_template provider
renders it; a missing --context falls back to the no-context sentinel.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := llm.PromptTemplate
		if promptFlags.question != "" {
			ctx := promptFlags.context
			if ctx == "" {
				ctx = llm.NoContext
			}
			out = llm.RenderPrompt(ctx, promptFlags.question)
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)

	promptCmd.Flags().StringVar(&promptFlags.context, "context", "", "lesson context to render into the template")
	promptCmd.Flags().StringVar(&promptFlags.question, "question", "", "student question to render into the template")
}
