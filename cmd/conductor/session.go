package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/outpostrun/conductor/internal/sessions"
)

func buildSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect persisted sessions",
		Long:  `session lists and shows the JSONL session files saved under the workspace's .sessions directory.`,
	}
	cmd.AddCommand(buildSessionListCmd(), buildSessionShowCmd())
	return cmd
}

func buildSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted sessions",
		Example: `  conductor session list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			names, err := listSessionFiles(app.Config.Workspace.Path)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("no saved sessions")
				return nil
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func buildSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a persisted session's current path",
		Args:  cobra.ExactArgs(1),
		Example: `  conductor session show my-project`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			path := filepath.Join(app.Config.Workspace.Path, ".sessions", args[0]+".jsonl")
			s, err := sessions.Load(path)
			if err != nil {
				return fmt.Errorf("load session %q: %w", args[0], err)
			}
			for _, entry := range s.CurrentPath() {
				fmt.Printf("[%s] %s\n", entry.Role, entry.Content)
			}
			return nil
		},
	}
}

func listSessionFiles(workspace string) ([]string, error) {
	dir := filepath.Join(workspace, ".sessions")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".jsonl"))
	}
	sort.Strings(names)
	return names, nil
}
