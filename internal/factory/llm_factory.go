package factory

import (
	"fmt"

	"github.com/mikey/llm-spam-replier/internal/adapters/bedrock"
	"github.com/mikey/llm-spam-replier/internal/adapters/gemini"
	"github.com/mikey/llm-spam-replier/internal/adapters/openai"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/core"
	"go.uber.org/zap"
)

// LLMFactory creates LLM clients
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLLMClient creates a new LLM client based on the configuration
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger).CreateLLMClient()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger).CreateLLMClient()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger).CreateLLMClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
