// Package cmd wires the CLI commands. Following the layout of kubectl and
// other standard Go CLI tools, all command logic lives here and main.go
// stays a minimal entry point.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentkb",
	Short: "Multi-tenant knowledge base with semantic retrieval",
	Long: `agentkb is a knowledge base service for AI agents.

It chunks and embeds text resources into PostgreSQL + pgvector and answers
similarity queries scoped per user and agent, over HTTP or Gemini function
calling.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())
}
