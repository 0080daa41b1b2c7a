package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/di"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	flags *di.CLIFlags,
	service *core.EmailClassifierService,
) error {
	defer logger.Sync()

	if flags.GmailToken == "" {
		return fmt.Errorf("missing required flag: -gmail-token")
	}
	if flags.OpenAIAPIKey == "" {
		return fmt.Errorf("missing required flag: -openai-api-key")
	}

	// Cancel the whole batch on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting batch classification", zap.Int("limit", flags.Limit))

	results, err := service.ClassifyBatch(ctx, flags.GmailToken, flags.OpenAIAPIKey, flags.Limit)
	if err != nil {
		logger.Error("Batch classification failed", zap.Error(err))
		return err
	}

	logger.Info("Batch classification complete", zap.Int("classified", len(results)))

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
