package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-spam-replier/internal/core"
)

func TestSplitConversation(t *testing.T) {
	system, history, prompt, err := splitConversation([]core.ChatMessage{
		{Role: core.RoleSystem, Content: "You are Arthur."},
		{Role: core.RoleUser, Content: "I have money for you."},
		{Role: core.RoleAssistant, Content: "How much?"},
		{Role: core.RoleUser, Content: "Ten million."},
	})
	if err != nil {
		t.Fatalf("splitConversation: %v", err)
	}
	if system != "You are Arthur." {
		t.Fatalf("unexpected system %q", system)
	}
	if prompt != "Ten million." {
		t.Fatalf("unexpected prompt %q", prompt)
	}
	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "model" {
		t.Fatalf("unexpected history %+v", history)
	}
	if text, ok := history[1].Parts[0].(genai.Text); !ok || string(text) != "How much?" {
		t.Fatalf("unexpected history part %v", history[1].Parts[0])
	}
}

func TestSplitConversationNeedsUserTurn(t *testing.T) {
	if _, _, _, err := splitConversation(nil); err == nil {
		t.Fatalf("expected error for empty conversation")
	}
	_, _, _, err := splitConversation([]core.ChatMessage{
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
	})
	if err == nil {
		t.Fatalf("expected error for conversation ending with assistant")
	}
}

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Where "), genai.Text("do I sign? ")}},
	}}}
	if got := responseText(resp); got != "Where do I sign?" {
		t.Fatalf("unexpected text %q", got)
	}
}
