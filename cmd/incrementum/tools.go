package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"incrementum/internal/mcp"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := mcp.NewRegistry(logger)
		for _, def := range registry.Tools() {
			fmt.Printf("%-24s %s\n", def.Name, def.Description)
		}
		return nil
	},
}
