package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/internal/commands"
	"github.com/outpostrun/conductor/internal/queue"
	"github.com/outpostrun/conductor/internal/sessions"
)

func buildChatCmd() *cobra.Command {
	var sessionName string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session with the agent",
		Long: `chat reads lines from standard input and feeds them to the agent one
turn at a time. Three prefixes change how a line is handled instead of
being sent as a plain message:

  /name args   runs a registered slash command (help, status, new, model, ...)
  !text        steers the current turn: queued and drained between tool calls
  >>text       queues a follow-up, sent only once the current turn finishes cleanly

A line containing "@path" inlines that file's contents into the message
before it is sent, rejecting any path that escapes the workspace root.`,
		Example: `  conductor chat
  conductor chat --session my-project`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), app, sessionName, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&sessionName, "session", "", "name for this chat session (default: a generated name)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit newline-delimited JSON events instead of plain text")
	return cmd
}

func runChat(ctx context.Context, app *App, sessionName string, jsonOutput bool) error {
	session := app.NewSession(sessionName)
	loop := app.NewLoop(session)
	parser := commands.NewParser(app.Commands, commands.DefaultPrefixes...)
	q := queue.New()
	ctx = agent.WithQueue(ctx, q)

	var emitter *jsonEmitter
	if jsonOutput {
		emitter = newJSONEmitter(os.Stdout)
		ctx = emitter.withObservers(ctx)
	} else {
		fmt.Fprintf(os.Stdout, "conductor chat — session %q. Ctrl-D to exit.\n", session.Name)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if emitter == nil {
			fmt.Fprint(os.Stdout, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		kind, text := ClassifyInput(line)
		switch kind {
		case InputCommand:
			handleSlashCommand(ctx, app, parser, session, text, emitter)
		case InputSteering:
			q.AddSteering(text)
			if emitter == nil {
				fmt.Fprintln(os.Stdout, "(queued as steering)")
			}
		case InputFollowUp:
			q.AddFollowUp(text)
			if emitter == nil {
				fmt.Fprintln(os.Stdout, "(queued as follow-up)")
			}
		case InputMessage:
			expanded, err := ExpandFileReferences(app.Config.Workspace.Path, text)
			if err != nil {
				reportError(emitter, err)
				continue
			}
			resp, err := loop.Run(ctx, expanded, true)
			if err != nil {
				reportError(emitter, err)
				continue
			}
			if emitter != nil {
				emitter.done(resp.Content)
			} else {
				fmt.Fprintln(os.Stdout, resp.Content)
			}
		}
	}

	loop.NotifySessionEnd(ctx)
	return scanner.Err()
}

func handleSlashCommand(ctx context.Context, app *App, parser *commands.Parser, session *sessions.Session, text string, emitter *jsonEmitter) {
	parsed := parser.ParseCommand(text)
	if parsed == nil {
		reportError(emitter, fmt.Errorf("not a recognized command: %s", text))
		return
	}
	inv := &commands.Invocation{
		Name:       parsed.Name,
		Args:       parsed.Args,
		RawText:    text,
		SessionKey: session.Name,
	}
	result, err := app.Commands.Execute(ctx, inv)
	if err != nil {
		reportError(emitter, err)
		return
	}
	if result.Suppress {
		return
	}
	if result.Error != "" {
		reportError(emitter, fmt.Errorf("%s", result.Error))
		return
	}
	if emitter != nil {
		emitter.message(result.Text)
		return
	}
	fmt.Fprintln(os.Stdout, result.Text)
}

func reportError(emitter *jsonEmitter, err error) {
	if emitter != nil {
		emitter.errorEvent(err)
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}
