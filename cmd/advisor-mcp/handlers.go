package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// handleCreateEnsemble implements the create_ensemble tool
func handleCreateEnsemble(service interfaces.EnsembleService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		modelIDs := request.GetStringSlice("model_ids", nil)
		if len(modelIDs) == 0 {
			return errorResult("Error: model_ids parameter is required"), nil
		}

		resp, err := service.CreateEnsemble(ctx, &models.CreateEnsembleRequest{
			ModelIDs: modelIDs,
			Mode:     models.CollaborationMode(request.GetString("mode", "")),
		})
		if err != nil {
			logger.Warn().Err(err).Strs("model_ids", modelIDs).Msg("create_ensemble failed")
			return errorResult(formatJSON(resp)), nil
		}

		return textResult(formatJSON(resp)), nil
	}
}

// handleAnalyzePortfolio implements the analyze_portfolio tool
func handleAnalyzePortfolio(service interfaces.EnsembleService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ensembleID, err := request.RequireString("ensemble_id")
		if err != nil || ensembleID == "" {
			return errorResult("Error: ensemble_id parameter is required"), nil
		}

		var portfolio models.PortfolioSnapshot
		if raw := request.GetString("portfolio_json", ""); raw != "" {
			portfolio, err = models.ParsePortfolio([]byte(raw), ".json")
			if err != nil {
				return errorResult(fmt.Sprintf("Error: %v", err)), nil
			}
		}

		result, err := service.AnalyzePortfolio(ctx, ensembleID, &models.AnalyzeRequest{
			Portfolio: portfolio,
			Depth:     models.AnalysisDepth(request.GetString("depth", "")),
		})
		if err != nil {
			logger.Warn().Err(err).Str("ensemble_id", ensembleID).Msg("analyze_portfolio failed")
			return errorResult(formatJSON(models.AnalyzeResponse{Error: err.Error()})), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatResultSummary(result)),
				mcp.NewTextContent(formatJSON(models.AnalyzeResponse{Success: true, Result: result})),
			},
		}, nil
	}
}

// handleListEnsembles implements the list_ensembles tool
func handleListEnsembles(service interfaces.EnsembleService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ensembles, err := service.ListEnsembles(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("List ensembles failed")
			return errorResult(fmt.Sprintf("List error: %v", err)), nil
		}
		return textResult(formatEnsembleList(ensembles)), nil
	}
}

// handleListResults implements the list_results tool
func handleListResults(service interfaces.EnsembleService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ensembleID, err := request.RequireString("ensemble_id")
		if err != nil || ensembleID == "" {
			return errorResult("Error: ensemble_id parameter is required"), nil
		}

		// Parse limit (default: 5, max: 50)
		limit := request.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		results, err := service.ListResults(ctx, ensembleID, limit)
		if err != nil {
			logger.Error().Err(err).Str("ensemble_id", ensembleID).Msg("List results failed")
			return errorResult(fmt.Sprintf("List error: %v", err)), nil
		}
		return textResult(formatResultHistory(ensembleID, results)), nil
	}
}

func formatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(data)
}
