package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-spam-replier/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the LLMClient interface using Google Gemini
type GeminiClient struct {
	client      *genai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// GenerateReply produces the next reply in the conversation
func (c *GeminiClient) GenerateReply(ctx context.Context, conversation []core.ChatMessage) (*core.GeneratedReply, error) {
	system, history, last, err := splitConversation(conversation)
	if err != nil {
		return nil, err
	}

	// A model per request; the system instruction differs per thread
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(c.temperature)
	model.SetTopP(c.topP)
	model.SetMaxOutputTokens(int32(c.maxTokens))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := model.StartChat()
	session.History = history

	c.logger.Debug("Requesting reply from Gemini",
		zap.String("model", c.modelName),
		zap.Int("history", len(history)))

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	return &core.GeneratedReply{
		Body:        text,
		ModelUsed:   c.modelName,
		GeneratedAt: time.Now(),
	}, nil
}

// splitConversation converts chat turns into Gemini history plus the final
// user prompt to send
func splitConversation(conversation []core.ChatMessage) (string, []*genai.Content, string, error) {
	system, turns := core.SplitSystem(conversation)
	if len(turns) == 0 || turns[len(turns)-1].Role != core.RoleUser {
		return "", nil, "", fmt.Errorf("conversation must end with a user turn")
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == core.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	return system, history, turns[len(turns)-1].Content, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
