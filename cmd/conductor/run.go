package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/internal/queue"
)

func buildRunCmd() *cobra.Command {
	var jsonOutput bool
	var sessionName string

	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Run a single turn against the agent and print the result",
		Long: `run sends one message to the agent, lets it work through however many
tool calls it needs, and prints the final assistant reply. It is the
scripted, non-interactive counterpart to "chat".`,
		Example: `  conductor run "summarize the open issues in this repo"
  conductor run --json "list the files under ./internal" | jq .`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, configPath)
			if err != nil {
				return err
			}

			session := app.NewSession(sessionName)
			loop := app.NewLoop(session)

			ctx = agentContextWithQueue(ctx)

			var emitter *jsonEmitter
			if jsonOutput {
				emitter = newJSONEmitter(os.Stdout)
				ctx = emitter.withObservers(ctx)
			}

			resp, err := loop.Run(ctx, args[0], true)
			if err != nil {
				if emitter != nil {
					emitter.errorEvent(err)
					return nil
				}
				return err
			}

			if emitter != nil {
				emitter.done(resp.Content)
				return nil
			}
			fmt.Println(resp.Content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit newline-delimited JSON events instead of plain text")
	cmd.Flags().StringVar(&sessionName, "session", "", "name for the session this run starts (default: a generated name)")
	return cmd
}

// agentContextWithQueue attaches a fresh, empty queue to ctx so the loop's
// steering/follow-up checks have something to consult even in a one-shot
// run where nothing will ever enqueue into it.
func agentContextWithQueue(ctx context.Context) context.Context {
	return agent.WithQueue(ctx, queue.New())
}
