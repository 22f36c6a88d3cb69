package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/llm-spam-replier/internal/adapters/parser"
	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"go.uber.org/zap"
)

// Composer renders a reply as a raw message, assigning its Message-ID
type Composer interface {
	Compose(reply *core.Reply) ([]byte, error)
}

// Options configures a Responder
type Options struct {
	DryRun       bool
	PollInterval time.Duration
	LLMTimeout   time.Duration
}

// Responder answers every thread in the folder whose last message came from
// a third party
type Responder struct {
	mailbox  ports.Mailbox
	sender   ports.MailSender
	composer Composer
	parser   *parser.Parser
	service  *core.ReplyService
	logger   *zap.Logger
	opts     Options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewResponder creates a new responder
func NewResponder(
	mailbox ports.Mailbox,
	sender ports.MailSender,
	composer Composer,
	parser *parser.Parser,
	service *core.ReplyService,
	logger *zap.Logger,
	opts Options,
) *Responder {
	return &Responder{
		mailbox:  mailbox,
		sender:   sender,
		composer: composer,
		parser:   parser,
		service:  service,
		logger:   logger,
		opts:     opts,
	}
}

// Threads fetches and parses the folder and reconstructs its threads. Parse
// failures are returned alongside the reconstruction.
func (r *Responder) Threads(ctx context.Context) (*core.Reconstruction, []*core.MessageError, error) {
	raws, err := r.mailbox.FetchAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	messages, parseErrs := r.parser.ParseAll(raws)
	return r.service.Reconstruct(messages), parseErrs, nil
}

// RunOnce performs a single pass over the folder. Per-thread failures are
// counted in the report and never abort the pass.
func (r *Responder) RunOnce(ctx context.Context) (*ports.RunReport, error) {
	start := time.Now()

	rec, parseErrs, err := r.Threads(ctx)
	if err != nil {
		return nil, err
	}

	report := &ports.RunReport{
		Threads: len(rec.Threads),
		DryRun:  r.opts.DryRun,
	}
	report.Malformed = append(core.MessageErrorIDs(parseErrs), core.MessageErrorIDs(rec.Skipped)...)
	report.Conflicts = core.MessageErrorIDs(rec.Conflicts)

	for _, t := range rec.Threads {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		decision := r.service.Decide(ctx, t)
		logger := r.logger.With(
			zap.String("thread_id", t.ID),
			zap.String("subject", t.Subject()),
			zap.String("decision", decision.Action.String()),
			zap.String("reason", decision.Reason))

		switch decision.Action {
		case core.ActionSkip:
			report.Skipped++
			logger.Debug("Skipping thread")
		case core.ActionError:
			report.Failed++
			logger.Warn("Cannot reply to thread", zap.Error(decision.Err))
		case core.ActionReply:
			if err := r.reply(ctx, t, logger); err != nil {
				report.Failed++
				logger.Error("Failed to reply to thread", zap.Error(err))
				continue
			}
			report.Replied++
		}
	}

	r.logger.Info("Responder pass complete",
		zap.Int("threads", report.Threads),
		zap.Int("replied", report.Replied),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("malformed", len(report.Malformed)),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Bool("dry_run", report.DryRun),
		zap.Duration("duration", time.Since(start)))

	return report, nil
}

func (r *Responder) reply(ctx context.Context, t *core.Thread, logger *zap.Logger) error {
	llmCtx := ctx
	if r.opts.LLMTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, r.opts.LLMTimeout)
		defer cancel()
	}

	reply, err := r.service.ComposeReply(llmCtx, t)
	if err != nil {
		return err
	}

	if r.opts.DryRun {
		logger.Info("Drafted reply (dry run)",
			zap.String("from", reply.From),
			zap.String("to", reply.To),
			zap.String("model", reply.ModelUsed),
			zap.String("body", reply.Body))
		return nil
	}

	raw, err := r.composer.Compose(reply)
	if err != nil {
		return fmt.Errorf("failed to compose reply: %w", err)
	}

	if err := r.sender.Send(ctx, reply.From, []string{reply.To}, raw); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	sentAt := time.Now()

	// The reply is out; from here on failures are logged, not returned
	if err := r.mailbox.Append(ctx, raw); err != nil {
		logger.Error("Failed to file sent reply", zap.Error(err))
	}
	if err := r.service.RecordReply(ctx, reply, sentAt); err != nil {
		logger.Warn("Failed to record reply", zap.Error(err))
	}

	logger.Info("Sent reply",
		zap.String("to", reply.To),
		zap.String("message_id", reply.MessageID),
		zap.String("model", reply.ModelUsed))
	return nil
}

// Start runs a pass immediately and then every poll interval until Stop
func (r *Responder) Start() error {
	if r.opts.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return errors.New("responder already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	r.logger.Info("Responder starting", zap.Duration("poll_interval", r.opts.PollInterval))

	go r.loop(ctx, r.done)
	return nil
}

func (r *Responder) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("Responder pass failed", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the poll loop and waits for an in-flight pass to finish
func (r *Responder) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	r.logger.Info("Responder stopped")
	return nil
}
