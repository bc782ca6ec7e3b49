package main

import (
	"fmt"

	"github.com/spf13/cobra"

	ctxwindow "github.com/outpostrun/conductor/internal/context"
)

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report provider, model, and context window status",
		Example: `  conductor status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}

			fmt.Printf("provider: %s\n", app.Provider.Name())
			fmt.Printf("model: %s\n", app.Model)

			window := ctxwindow.NewWindowForModel(app.Model)
			info := window.Info()
			fmt.Printf("context window: %s\n", info)

			fmt.Printf("tools registered: %d\n", app.Tools.Len())
			fmt.Printf("commands registered: %d\n", len(app.Commands.Names()))

			loaded := app.Extensions.Loaded()
			fmt.Printf("extensions loaded: %d\n", len(loaded))
			for _, ext := range loaded {
				fmt.Printf("  - %s\n", ext.ID)
			}
			return nil
		},
	}
}
