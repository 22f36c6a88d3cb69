package core

import (
	"context"
)

// LLMClient defines the interface for generating replies with an LLM
type LLMClient interface {
	// GenerateReply produces the next assistant turn for the conversation
	GenerateReply(ctx context.Context, conversation []ChatMessage) (*GeneratedReply, error)
}

// ReplyLedger remembers which messages have already been answered
type ReplyLedger interface {
	// Get retrieves the entry for an answered message id
	Get(ctx context.Context, messageID string) (*LedgerEntry, error)

	// Set stores an entry
	Set(ctx context.Context, entry *LedgerEntry) error

	// Delete removes an entry
	Delete(ctx context.Context, messageID string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
