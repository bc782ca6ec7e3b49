package main

import (
	"github.com/spf13/cobra"
)

var configPath string

// buildRootCmd assembles the root command and every subcommand. Kept
// separate from main so tests can build and inspect the command tree
// without invoking os.Exit.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "conductor",
		Short: "A conversational, tool-using agent runtime",
		Long: `conductor drives a tool-using conversational agent against a configurable
LLM provider, with a session tree that supports branching and forking,
slash commands, and chat-platform adapters for Slack, Discord, Telegram,
WhatsApp, Matrix, and Mattermost.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "conductor.yaml", "path to the configuration file")

	root.AddCommand(
		buildRunCmd(),
		buildChatCmd(),
		buildSessionCmd(),
		buildStatusCmd(),
		buildRPCCmd(),
	)
	return root
}
