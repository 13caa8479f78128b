package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/advisor/internal/app"
	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
)

func main() {
	// Load configuration
	configPath := os.Getenv("ADVISOR_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("advisor.toml"); err == nil {
			configPath = "advisor.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// No WebSocket clients on stdio
	config.WebSocket.Enabled = false

	// Initialize minimal logger for MCP server (console only, no file output)
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn") // Minimal logging to avoid cluttering MCP stdio

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := newMCPServer(application.EnsembleService, logger)

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

// newMCPServer registers every ensemble tool
func newMCPServer(service interfaces.EnsembleService, logger arbor.ILogger) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"advisor",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createEnsembleTool(), handleCreateEnsemble(service, logger))
	mcpServer.AddTool(createAnalyzePortfolioTool(), handleAnalyzePortfolio(service, logger))
	mcpServer.AddTool(createListEnsemblesTool(), handleListEnsembles(service, logger))
	mcpServer.AddTool(createListResultsTool(), handleListResults(service, logger))

	return mcpServer
}
