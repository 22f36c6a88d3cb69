package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatCompleter is the subset of the OpenAI API the client uses
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient is an implementation of the LLMClient interface using OpenAI
type OpenAIClient struct {
	client      ChatCompleter
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client ChatCompleter,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *OpenAIClient {
	return &OpenAIClient{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// GenerateReply produces the next reply in the conversation
func (c *OpenAIClient) GenerateReply(ctx context.Context, conversation []core.ChatMessage) (*core.GeneratedReply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, m := range conversation {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    chatRole(m.Role),
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.modelName,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	c.logger.Debug("Requesting reply from OpenAI",
		zap.String("model", c.modelName),
		zap.Int("turns", len(messages)))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	model := resp.Model
	if model == "" {
		model = c.modelName
	}

	return &core.GeneratedReply{
		Body:         strings.TrimSpace(resp.Choices[0].Message.Content),
		ModelUsed:    model,
		ProcessingID: resp.ID,
		GeneratedAt:  time.Now(),
	}, nil
}

func chatRole(role core.ChatRole) string {
	switch role {
	case core.RoleSystem:
		return openai.ChatMessageRoleSystem
	case core.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
