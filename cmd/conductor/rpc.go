package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/internal/queue"
)

// rpcRequest is one line of an RPC-mode stdio request.
type rpcRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is one line of an RPC-mode stdio response. Exactly one of
// Result or Error is set.
type rpcResponse struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type completeParams struct {
	Session string `json:"session"`
	Message string `json:"message"`
}

func buildRPCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Run a newline-delimited JSON-RPC loop over stdio",
		Long: `rpc reads one JSON request per line from stdin and writes one JSON
response per line to stdout, for embedding conductor as a subprocess of
another program. Supported methods: complete, stream, ping, status.`,
		Example: `  echo '{"id":"1","method":"ping"}' | conductor rpc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			return runRPC(cmd.Context(), app, os.Stdin, os.Stdout)
		},
	}
	return cmd
}

func runRPC(ctx context.Context, app *App, in *os.File, out *os.File) error {
	sessionsByName := map[string]*sessionState{}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			enc.Encode(rpcResponse{Error: fmt.Sprintf("invalid request: %v", err)})
			continue
		}
		resp := dispatchRPC(ctx, app, sessionsByName, &req)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	}
	return scanner.Err()
}

// sessionState pairs a session and its loop so a single RPC connection can
// hold a running conversation open across multiple "complete" calls.
type sessionState struct {
	loop  *agent.Loop
	queue *queue.Queue
}

func dispatchRPC(ctx context.Context, app *App, sessionsByName map[string]*sessionState, req *rpcRequest) rpcResponse {
	switch req.Method {
	case "ping":
		return rpcResponse{ID: req.ID, Result: "pong"}

	case "status":
		return rpcResponse{ID: req.ID, Result: map[string]any{
			"provider": app.Provider.Name(),
			"model":    app.Model,
			"tools":    app.Tools.Len(),
		}}

	case "complete", "stream":
		var params completeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return rpcResponse{ID: req.ID, Error: fmt.Sprintf("invalid params: %v", err)}
		}
		if params.Message == "" {
			return rpcResponse{ID: req.ID, Error: "params.message is required"}
		}

		state, ok := sessionsByName[params.Session]
		if !ok {
			session := app.NewSession(params.Session)
			state = &sessionState{loop: app.NewLoop(session), queue: queue.New()}
			sessionsByName[params.Session] = state
		}

		runCtx := agent.WithQueue(ctx, state.queue)
		resp, err := state.loop.Run(runCtx, params.Message, true)
		if err != nil {
			return rpcResponse{ID: req.ID, Error: err.Error()}
		}
		return rpcResponse{ID: req.ID, Result: map[string]any{
			"content":       resp.Content,
			"finish_reason": resp.FinishReason,
		}}

	default:
		return rpcResponse{ID: req.ID, Error: fmt.Sprintf("unknown method %q", req.Method)}
	}
}
