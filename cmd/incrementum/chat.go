package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"incrementum/internal/assistant"
	"incrementum/internal/config"
	"incrementum/internal/llm"
	"incrementum/internal/mcp"
	"incrementum/internal/prompt"
)

var chatDocumentID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive assistant session",
	Long: `Starts a REPL talking to the configured completion provider. Tool
calls embedded in assistant replies run against the built-in tool
registry; pass --document to scope document tools to an active
document.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatDocumentID, "document", "d", "", "active document id for tool calls")
}

func runChat(cmd *cobra.Command, args []string) error {
	controller, registry, err := buildController(cfg, logger)
	if err != nil {
		return err
	}

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	fmt.Printf("Incrementum assistant (%d tools available). Type /quit to exit.\n", len(registry.Tools()))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		if err := controller.Send(cmd.Context(), line); err != nil {
			fmt.Println("Assistant is busy, try again in a moment.")
			continue
		}

		msgs := controller.Messages()
		last := msgs[len(msgs)-1]
		fmt.Println(safeRenderMarkdown(renderer, last.Content))

		controller.Wait()
		printToolCalls(controller)
	}

	controller.Wait()
	return scanner.Err()
}

// buildController wires config into the completion client, tool
// registry, executor, and controller.
func buildController(cfg *config.Config, logger *zap.Logger) (*assistant.Controller, *mcp.Registry, error) {
	provider, err := llm.ParseProvider(cfg.AI.Provider)
	if err != nil {
		return nil, nil, err
	}

	clientCfg := llm.ClientConfig{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.GetTimeout(),
	}
	if provider == llm.ProviderOllama && clientCfg.BaseURL == "" {
		clientCfg.BaseURL = cfg.AI.OllamaURL
	}

	client, err := llm.New(provider, clientCfg)
	if err != nil {
		return nil, nil, err
	}

	registry := mcp.NewRegistry(logger)
	controller := assistant.NewController(assistant.ControllerConfig{
		Client:       client,
		Executor:     assistant.NewExecutor(registry, logger),
		Logger:       logger,
		SystemPrompt: prompt.ToolInstructions(registry.Tools()),
	})
	if chatDocumentID != "" {
		controller.SetDocumentID(chatDocumentID)
	}

	// Connect any configured external MCP servers so their tools are
	// reachable alongside the built-ins.
	for _, sc := range cfg.MCPServerConfigs() {
		mc := mcp.NewClient(sc, logger)
		if err := mc.Start(context.Background()); err != nil {
			logger.Warn("failed to start MCP server",
				zap.String("server", sc.Name),
				zap.Error(err))
			continue
		}
		for _, def := range mc.Tools() {
			registry.RegisterRemote(def, mc)
		}
	}

	return controller, registry, nil
}

// safeRenderMarkdown renders markdown with panic recovery; a glamour
// failure falls back to the plain text.
func safeRenderMarkdown(renderer *glamour.TermRenderer, content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if renderer != nil && content != "" {
		rendered, err := renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

// printToolCalls shows the resolution of the last message's tool calls.
func printToolCalls(controller *assistant.Controller) {
	msgs := controller.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	for _, tc := range last.ToolCalls {
		status := "✓"
		if tc.Status == assistant.CallError {
			status = "✗"
		}
		fmt.Printf("  %s %s: %s\n", status, tc.Name, tc.Result)
	}
}
