package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// Load creates a new configuration instance. An empty path searches the
// default locations; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/spam-replier/")
		v.AddConfigPath("$HOME/.spam-replier")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("SPAM_REPLIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Mail store defaults
	v.SetDefault("mail.source", "imap")
	v.SetDefault("mail.mbox_path", "./spam.mbox")

	v.SetDefault("imap.url", "")
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.starttls", false)
	v.SetDefault("imap.insecure_skip_verify", false)
	v.SetDefault("imap.mailbox", "SpamGPT")

	v.SetDefault("smtp.url", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.tls", false)
	v.SetDefault("smtp.starttls", true)
	v.SetDefault("smtp.insecure_skip_verify", false)
	v.SetDefault("smtp.timeout", "30s")

	// Reply defaults
	v.SetDefault("reply.self_addresses", []string{})
	v.SetDefault("reply.ignored_domains", []string{})
	v.SetDefault("reply.personal_details", "")
	v.SetDefault("reply.persona_name", "Stavros")
	v.SetDefault("reply.message_id_host", "")
	v.SetDefault("reply.dry_run", false)
	v.SetDefault("reply.max_body_size", 4096)

	// Responder defaults
	v.SetDefault("responder.mode", "once")
	v.SetDefault("responder.poll_interval", "15m")
	v.SetDefault("responder.llm_timeout", "2m")

	// Intake defaults
	v.SetDefault("intake.listen_address", "127.0.0.1:2525")
	v.SetDefault("intake.domain", "localhost")
	v.SetDefault("intake.max_message_bytes", 10*1024*1024)

	// LLM provider defaults
	v.SetDefault("llm.provider", "openai")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 1.0)
	v.SetDefault("bedrock.top_p", 0.9)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 1.0)
	v.SetDefault("gemini.top_p", 0.9)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 1.0)
	v.SetDefault("openai.top_p", 1.0)

	// Ledger defaults
	v.SetDefault("ledger.type", "memory")
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.ttl", "720h")
	v.SetDefault("ledger.cleanup_frequency", "1h")
	v.SetDefault("ledger.sqlite_path", "/data/spam_replier.db")
	v.SetDefault("ledger.mysql_dsn", "user:password@tcp(localhost:3306)/spam_replier?parseTime=true")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration.
// Comma separated strings, as found in environment variables, are split.
func (c *Config) GetStringSlice(key string) []string {
	raw := c.v.GetStringSlice(key)
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
	}
	return values
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}
