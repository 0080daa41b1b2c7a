package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-email-classifier/internal/adapters/gmail"
	"github.com/mikey/llm-email-classifier/internal/adapters/openai"
	"github.com/mikey/llm-email-classifier/internal/config"
	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application.
// Credentials live here, not in the clients: they are threaded explicitly
// through every pipeline call.
type CLIFlags struct {
	// Credentials
	GmailToken   string
	OpenAIAPIKey string

	// Batch flags
	Limit int

	// OpenAI flags
	ModelName   string
	MaxTokens   int
	Temperature float64
	MaxBodySize int

	// Output flags
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Credentials
	flag.StringVar(&flags.GmailToken, "gmail-token", "", "Bearer token for the Gmail API")
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")

	// Batch flags
	flag.IntVar(&flags.Limit, "limit", 15, "Maximum number of recent messages to classify")

	// OpenAI flags
	flag.StringVar(&flags.ModelName, "openai-model", "gpt-4", "OpenAI model name")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 200, "Maximum tokens for LLM response")
	flag.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for LLM generation")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum email body size to send to LLM")

	// Output flags
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container
// for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register mailbox client
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.MailboxClient {
		gmailCfg := cfg.GetGmail()
		return gmail.NewClient(gmailCfg.BaseURL, nil, gmailCfg.FetchConcurrency, logger)
	}); err != nil {
		return nil, err
	}

	// Register LLM client
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.LLMClient {
		openaiCfg := cfg.GetOpenAI()
		return openai.NewClient(
			openaiCfg.BaseURL,
			nil,
			openaiCfg.ModelName,
			openaiCfg.MaxTokens,
			openaiCfg.Temperature,
			openaiCfg.MaxBodySize,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register batch classification service
	if err := container.Provide(func(
		mailbox core.MailboxClient,
		llmClient core.LLMClient,
		logger *zap.Logger,
		cfg *config.Config,
	) *core.EmailClassifierService {
		return core.NewEmailClassifierService(mailbox, llmClient, logger, cfg.GetBatch().InterMessageDelay)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("openai.model_name", flags.ModelName)
	v.Set("openai.max_tokens", flags.MaxTokens)
	v.Set("openai.temperature", flags.Temperature)
	v.Set("openai.max_body_size", flags.MaxBodySize)
	v.Set("gmail.max_results", flags.Limit)

	return config.NewFromViper(v)
}
