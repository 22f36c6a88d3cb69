package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zaptest"
)

type fakeCompleter struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

var conversation = []core.ChatMessage{
	{Role: core.RoleSystem, Content: "You are Arthur."},
	{Role: core.RoleUser, Content: "I have money for you."},
	{Role: core.RoleAssistant, Content: "How much?"},
	{Role: core.RoleUser, Content: "Ten million."},
}

func TestGenerateReply(t *testing.T) {
	fake := &fakeCompleter{resp: openai.ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o-2024-08-06",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "  Splendid, where do I sign?\n"}},
		},
	}}
	client := NewOpenAIClient(fake, "gpt-4o", 300, 0.9, 1, zaptest.NewLogger(t))

	reply, err := client.GenerateReply(context.Background(), conversation)
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if reply.Body != "Splendid, where do I sign?" {
		t.Fatalf("unexpected body %q", reply.Body)
	}
	if reply.ModelUsed != "gpt-4o-2024-08-06" || reply.ProcessingID != "chatcmpl-1" {
		t.Fatalf("unexpected metadata %+v", reply)
	}

	wantRoles := []string{
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleUser,
	}
	if len(fake.req.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(fake.req.Messages))
	}
	for i, role := range wantRoles {
		if fake.req.Messages[i].Role != role {
			t.Fatalf("message %d: expected role %s, got %s", i, role, fake.req.Messages[i].Role)
		}
	}
	if fake.req.Model != "gpt-4o" || fake.req.MaxTokens != 300 {
		t.Fatalf("unexpected request %+v", fake.req)
	}
}

func TestGenerateReplyErrors(t *testing.T) {
	boom := errors.New("rate limited")
	client := NewOpenAIClient(&fakeCompleter{err: boom}, "gpt-4o", 300, 0.9, 1, zaptest.NewLogger(t))
	if _, err := client.GenerateReply(context.Background(), conversation); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped API error, got %v", err)
	}

	client = NewOpenAIClient(&fakeCompleter{}, "gpt-4o", 300, 0.9, 1, zaptest.NewLogger(t))
	if _, err := client.GenerateReply(context.Background(), conversation); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestModelFallsBackToConfigured(t *testing.T) {
	fake := &fakeCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
	}}
	reply, err := NewOpenAIClient(fake, "local-model", 100, 0.5, 1, zaptest.NewLogger(t)).
		GenerateReply(context.Background(), conversation)
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if reply.ModelUsed != "local-model" {
		t.Fatalf("expected configured model, got %q", reply.ModelUsed)
	}
}
