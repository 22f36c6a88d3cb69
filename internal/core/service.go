package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-spam-replier/internal/utils"
	"github.com/mikey/llm-spam-replier/internal/whitelist"
	"go.uber.org/zap"
)

// ReplyAction is the outcome of deciding what to do with a thread
type ReplyAction int

const (
	ActionSkip ReplyAction = iota
	ActionReply
	ActionError
)

func (a ReplyAction) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionReply:
		return "reply"
	case ActionError:
		return "error"
	default:
		return "unknown"
	}
}

// ReplyDecision explains why a thread will or will not be answered
type ReplyDecision struct {
	Action ReplyAction
	Reason string
	Err    error
}

// ReplyOptions configures the ReplyService
type ReplyOptions struct {
	SelfAddresses SelfAddresses
	Persona       Persona
	MaxBodySize   int
	LedgerEnabled bool
	LedgerTTL     time.Duration
}

// ReplyService is the core service deciding on and generating replies
type ReplyService struct {
	llmClient     LLMClient
	ledger        ReplyLedger
	ignored       *whitelist.Checker
	textProcessor *utils.TextProcessor
	reconstructor *ThreadReconstructor
	logger        *zap.Logger
	opts          ReplyOptions
}

// NewReplyService creates a new reply service
func NewReplyService(
	llmClient LLMClient,
	ledger ReplyLedger,
	ignored *whitelist.Checker,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	opts ReplyOptions,
) *ReplyService {
	if ledger == nil {
		opts.LedgerEnabled = false
	}
	return &ReplyService{
		llmClient:     llmClient,
		ledger:        ledger,
		ignored:       ignored,
		textProcessor: textProcessor,
		reconstructor: NewThreadReconstructor(logger),
		logger:        logger,
		opts:          opts,
	}
}

// SelfAddresses returns the configured self addresses
func (s *ReplyService) SelfAddresses() SelfAddresses {
	return s.opts.SelfAddresses
}

// Reconstruct groups messages into threads
func (s *ReplyService) Reconstruct(messages []Message) *Reconstruction {
	return s.reconstructor.Reconstruct(messages)
}

// Decide determines whether a reply is owed for the thread
func (s *ReplyService) Decide(ctx context.Context, t *Thread) ReplyDecision {
	last, ok := t.LastMessage()
	if !ok {
		return ReplyDecision{Action: ActionSkip, Reason: "empty thread"}
	}
	if last.IsFromMe(s.opts.SelfAddresses) {
		return ReplyDecision{Action: ActionSkip, Reason: "already replied"}
	}

	sender, err := t.OriginatingSender(s.opts.SelfAddresses)
	if err != nil {
		return ReplyDecision{Action: ActionError, Reason: "no third-party message", Err: err}
	}
	if s.ignored != nil && s.ignored.IsWhitelisted(sender) {
		return ReplyDecision{Action: ActionSkip, Reason: "sender domain is ignored"}
	}

	if s.opts.LedgerEnabled {
		if entry, err := s.ledger.Get(ctx, last.ID); err == nil {
			s.logger.Debug("Ledger hit for message",
				zap.String("message_id", last.ID),
				zap.String("reply_message_id", entry.ReplyMessageID))
			return ReplyDecision{Action: ActionSkip, Reason: "reply already recorded"}
		}
	}

	return ReplyDecision{Action: ActionReply, Reason: "last message is from a third party"}
}

// ComposeReply asks the LLM for the next reply in the thread
func (s *ReplyService) ComposeReply(ctx context.Context, t *Thread) (*Reply, error) {
	self := s.opts.SelfAddresses

	first, err := t.FirstNonSelfMessage(self)
	if err != nil {
		return nil, err
	}
	last, _ := t.LastMessage()

	conversation, err := BuildConversation(t, self, s.opts.Persona, s.processBody)
	if err != nil {
		return nil, err
	}

	generated, err := s.llmClient.GenerateReply(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply for thread %s: %w", t.ID, err)
	}
	body := strings.TrimSpace(generated.Body)
	if body == "" {
		return nil, fmt.Errorf("thread %s: %w", t.ID, ErrEmptyReply)
	}

	return &Reply{
		ThreadID:   t.ID,
		From:       first.Recipient,
		To:         first.Sender,
		Subject:    ReplySubject(t.Subject()),
		Body:       body,
		InReplyTo:  last.ID,
		References: t.MessageIDs(),
		ModelUsed:  generated.ModelUsed,
	}, nil
}

// RecordReply stores the sent reply in the ledger if enabled
func (s *ReplyService) RecordReply(ctx context.Context, reply *Reply, sentAt time.Time) error {
	if !s.opts.LedgerEnabled {
		return nil
	}
	entry := &LedgerEntry{
		InReplyTo:      reply.InReplyTo,
		ThreadID:       reply.ThreadID,
		ReplyMessageID: reply.MessageID,
		SentAt:         sentAt,
		ExpiresAt:      sentAt.Add(s.opts.LedgerTTL),
	}
	if err := s.ledger.Set(ctx, entry); err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}
	return nil
}

func (s *ReplyService) processBody(body string) string {
	if s.textProcessor == nil {
		return body
	}
	return s.textProcessor.ProcessText(body, s.opts.MaxBodySize)
}

// ReplySubject prefixes subject with "Re: " unless it already carries one
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}
