package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/advisor/internal/app"
	"github.com/ternarybob/advisor/internal/models"
)

var (
	analyzeModels    []string
	analyzeMode      string
	analyzeDepth     string
	analyzePortfolio string
	analyzePersist   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Build an ensemble and run one analysis cycle, printing the result as JSON",
	Long: `Builds an ensemble from the given models, analyzes the portfolio file once and prints
the EnsembleResult. Example:

  advisor analyze --models risk_var_95,tech_momentum_1,vol_garch_1 --portfolio portfolio.toml --depth comprehensive`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVarP(&analyzeModels, "models", "m", nil, "Model ids to build the ensemble from")
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "", "Collaboration mode: parallel, sequential or consensus")
	analyzeCmd.Flags().StringVarP(&analyzeDepth, "depth", "d", "", "Analysis depth: quick, standard or comprehensive")
	analyzeCmd.Flags().StringVarP(&analyzePortfolio, "portfolio", "f", "", "Portfolio snapshot file (.json, .toml, .yaml)")
	analyzeCmd.Flags().BoolVar(&analyzePersist, "persist", false, "Keep the ensemble and result in the configured store")
	_ = analyzeCmd.MarkFlagRequired("models")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var portfolio models.PortfolioSnapshot
	if analyzePortfolio != "" {
		data, err := os.ReadFile(analyzePortfolio)
		if err != nil {
			return fmt.Errorf("failed to read portfolio: %w", err)
		}
		portfolio, err = models.ParsePortfolio(data, filepath.Ext(analyzePortfolio))
		if err != nil {
			return err
		}
	}

	if !analyzePersist {
		config.Storage.Badger.InMemory = true
	}
	// One-shot runs have no subscribers
	config.WebSocket.Enabled = false

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	created, err := application.EnsembleService.CreateEnsemble(ctx, &models.CreateEnsembleRequest{
		ModelIDs: analyzeModels,
		Mode:     models.CollaborationMode(analyzeMode),
	})
	if err != nil {
		return err
	}

	result, err := application.EnsembleService.AnalyzePortfolio(ctx, created.EnsembleID, &models.AnalyzeRequest{
		Portfolio: portfolio,
		Depth:     models.AnalysisDepth(analyzeDepth),
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(models.AnalyzeResponse{Success: true, Result: result})
}
