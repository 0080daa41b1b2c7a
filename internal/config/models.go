package config

import "time"

// GmailConfig represents the configuration for the Gmail mailbox client
type GmailConfig struct {
	BaseURL          string
	MaxResults       int
	FetchConcurrency int
}

// OpenAIConfig represents the configuration for the OpenAI inference client
type OpenAIConfig struct {
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	MaxBodySize int
}

// BatchConfig represents the configuration for batch orchestration
type BatchConfig struct {
	InterMessageDelay time.Duration
}

// GetGmail returns the Gmail configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		BaseURL:          c.GetString("gmail.base_url"),
		MaxResults:       c.GetInt("gmail.max_results"),
		FetchConcurrency: c.GetInt("gmail.fetch_concurrency"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetBatch returns the batch orchestration configuration
func (c *Config) GetBatch() BatchConfig {
	delay, err := c.GetDuration("batch.inter_message_delay")
	if err != nil {
		delay = 500 * time.Millisecond
	}
	return BatchConfig{
		InterMessageDelay: delay,
	}
}
