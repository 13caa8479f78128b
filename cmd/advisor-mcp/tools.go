package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createEnsembleTool returns the create_ensemble tool definition
func createEnsembleTool() mcp.Tool {
	return mcp.NewTool("create_ensemble",
		mcp.WithDescription("Build an agent ensemble from predictive model ids. Each model is assigned to the analysis role its id matches (risk, portfolio, sentiment, technical, volatility)."),
		mcp.WithArray("model_ids",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("Model ids, e.g. risk_var_95, tech_momentum_1, vol_garch_1"),
		),
		mcp.WithString("mode",
			mcp.Description("Collaboration mode: parallel (default), sequential, consensus"),
			mcp.Enum("parallel", "sequential", "consensus"),
		),
	)
}

// createAnalyzePortfolioTool returns the analyze_portfolio tool definition
func createAnalyzePortfolioTool() mcp.Tool {
	return mcp.NewTool("analyze_portfolio",
		mcp.WithDescription("Run one analysis cycle of an ensemble against a portfolio snapshot and return insights, recommendations and consensus"),
		mcp.WithString("ensemble_id",
			mcp.Required(),
			mcp.Description("Ensemble ID returned by create_ensemble (format: ens_{uuid})"),
		),
		mcp.WithString("portfolio_json",
			mcp.Description(`Portfolio snapshot as JSON, e.g. {"holdings":[{"symbol":"BHP","weight":0.6}]}`),
		),
		mcp.WithString("depth",
			mcp.Description("Analysis depth: quick, standard (default), comprehensive"),
			mcp.Enum("quick", "standard", "comprehensive"),
		),
	)
}

// createListEnsemblesTool returns the list_ensembles tool definition
func createListEnsemblesTool() mcp.Tool {
	return mcp.NewTool("list_ensembles",
		mcp.WithDescription("List stored ensembles with their agents and model assignments"),
	)
}

// createListResultsTool returns the list_results tool definition
func createListResultsTool() mcp.Tool {
	return mcp.NewTool("list_results",
		mcp.WithDescription("List the most recent analysis results of an ensemble, newest first"),
		mcp.WithString("ensemble_id",
			mcp.Required(),
			mcp.Description("Ensemble ID"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 5, max: 50)"),
		),
	)
}
