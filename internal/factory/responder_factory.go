package factory

import (
	"github.com/mikey/llm-spam-replier/internal/adapters/intake"
	"github.com/mikey/llm-spam-replier/internal/adapters/parser"
	"github.com/mikey/llm-spam-replier/internal/adapters/responder"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"github.com/mikey/llm-spam-replier/internal/utils"
	"github.com/mikey/llm-spam-replier/internal/whitelist"
	"go.uber.org/zap"
)

// ResponderFactory creates the reply service and the services built on it
type ResponderFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewResponderFactory creates a new responder factory
func NewResponderFactory(cfg *config.Config, logger *zap.Logger) *ResponderFactory {
	return &ResponderFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReplyService creates the core reply service
func (f *ResponderFactory) CreateReplyService(
	llmClient core.LLMClient,
	ledger core.ReplyLedger,
	ledgerFactory *LedgerFactory,
	textProcessor *utils.TextProcessor,
) (*core.ReplyService, error) {
	replyCfg := f.cfg.GetReply()

	opts := core.ReplyOptions{
		SelfAddresses: core.NewSelfAddresses(replyCfg.SelfAddresses),
		Persona: core.Persona{
			Name:            replyCfg.PersonaName,
			PersonalDetails: replyCfg.PersonalDetails,
		},
		MaxBodySize:   replyCfg.MaxBodySize,
		LedgerEnabled: ledger != nil,
	}
	if opts.LedgerEnabled {
		ttl, err := ledgerFactory.GetLedgerTTL()
		if err != nil {
			return nil, err
		}
		opts.LedgerTTL = ttl
	}

	if len(replyCfg.SelfAddresses) == 0 {
		f.logger.Warn("No self addresses configured; every message will be treated as third-party")
	}

	return core.NewReplyService(
		llmClient,
		ledger,
		whitelist.NewChecker(replyCfg.IgnoredDomains, f.logger),
		textProcessor,
		f.logger.Named("core"),
		opts,
	), nil
}

// CreateResponder creates the responder service
func (f *ResponderFactory) CreateResponder(
	mailbox ports.Mailbox,
	sender ports.MailSender,
	composer responder.Composer,
	messageParser *parser.Parser,
	service *core.ReplyService,
) (*responder.Responder, error) {
	responderCfg, err := f.cfg.GetResponder()
	if err != nil {
		return nil, err
	}

	return responder.NewResponder(
		mailbox,
		sender,
		composer,
		messageParser,
		service,
		f.logger.Named("responder"),
		responder.Options{
			DryRun:       f.cfg.GetBool("reply.dry_run"),
			PollInterval: responderCfg.PollInterval,
			LLMTimeout:   responderCfg.LLMTimeout,
		},
	), nil
}

// CreateIntakeServer creates the SMTP intake server filing into mailbox
func (f *ResponderFactory) CreateIntakeServer(mailbox ports.MailArchiver) *intake.Server {
	return intake.NewServer(f.cfg.GetIntake(), mailbox, f.logger.Named("intake"))
}
