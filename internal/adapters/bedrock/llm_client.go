package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-spam-replier/internal/core"
	"go.uber.org/zap"
)

const anthropicVersion = "bedrock-2023-05-31"

// ModelInvoker is the subset of the Bedrock runtime API the client uses
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient is an implementation of the LLMClient interface using Amazon Bedrock
type BedrockClient struct {
	client      ModelInvoker
	modelID     string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client ModelInvoker,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float32            `json:"temperature"`
	TopP             float32            `json:"top_p"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// GenerateReply produces the next reply in the conversation
func (c *BedrockClient) GenerateReply(ctx context.Context, conversation []core.ChatMessage) (*core.GeneratedReply, error) {
	var payload []byte
	var err error

	if c.isAnthropicModel() {
		payload, err = c.anthropicPayload(conversation)
	} else if c.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": flatten(conversation, "User", "Bot"),
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      flatten(conversation, "User", "Assistant"),
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	c.logger.Debug("Requesting reply from Bedrock",
		zap.String("model", c.modelID),
		zap.Int("turns", len(conversation)))

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	reply := &core.GeneratedReply{
		ModelUsed:   c.modelID,
		GeneratedAt: time.Now(),
	}

	if c.isAnthropicModel() {
		var claudeResp anthropicResponse
		if err := json.Unmarshal(resp.Body, &claudeResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var b strings.Builder
		for _, block := range claudeResp.Content {
			if block.Type == "" || block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		reply.Body = b.String()
		reply.ProcessingID = claudeResp.ID
	} else if c.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(resp.Body, &titanResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return nil, fmt.Errorf("empty response from Titan model")
		}
		reply.Body = titanResp.Results[0].OutputText
	} else {
		var genericResp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Response   string `json:"response"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(resp.Body, &genericResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, candidate := range []string{genericResp.Output, genericResp.Text, genericResp.Response, genericResp.Generation} {
			if candidate != "" {
				reply.Body = candidate
				break
			}
		}
	}

	reply.Body = strings.TrimSpace(reply.Body)
	if reply.Body == "" {
		return nil, fmt.Errorf("empty response from Bedrock model %s", c.modelID)
	}

	return reply, nil
}

func (c *BedrockClient) anthropicPayload(conversation []core.ChatMessage) ([]byte, error) {
	system, turns := core.SplitSystem(conversation)
	if len(turns) == 0 || turns[0].Role != core.RoleUser {
		return nil, fmt.Errorf("conversation must start with a user turn")
	}

	req := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.maxTokens,
		System:           system,
		Temperature:      c.temperature,
		TopP:             c.topP,
	}
	for _, m := range turns {
		req.Messages = append(req.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	return json.Marshal(req)
}

// flatten renders the conversation as a single transcript prompt for models
// without a chat format
func flatten(conversation []core.ChatMessage, userLabel, assistantLabel string) string {
	system, turns := core.SplitSystem(conversation)
	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	for _, m := range turns {
		label := userLabel
		if m.Role == core.RoleAssistant {
			label = assistantLabel
		}
		fmt.Fprintf(&b, "%s: %s\n\n", label, m.Content)
	}
	b.WriteString(assistantLabel)
	b.WriteString(":")
	return b.String()
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.Contains(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}
