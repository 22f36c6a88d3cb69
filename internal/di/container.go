package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-spam-replier/internal/adapters/intake"
	"github.com/mikey/llm-spam-replier/internal/adapters/ledger"
	"github.com/mikey/llm-spam-replier/internal/adapters/parser"
	"github.com/mikey/llm-spam-replier/internal/adapters/responder"
	"github.com/mikey/llm-spam-replier/internal/adapters/smtp"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/mikey/llm-spam-replier/internal/factory"
	"github.com/mikey/llm-spam-replier/internal/logging"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"github.com/mikey/llm-spam-replier/internal/utils"
)

// BuildContainer creates and configures a dependency injection container.
// Providers run lazily, so commands only construct what they invoke.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	for _, constructor := range []interface{}{
		factory.NewLLMFactory,
		factory.NewLedgerFactory,
		factory.NewMailFactory,
		factory.NewResponderFactory,
		factory.NewParserFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return nil, err
		}
	}

	// Register text processing
	if err := container.Provide(func(f *factory.ParserFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ParserFactory, tp *utils.TextProcessor) *parser.Parser {
		return f.CreateParser(tp)
	}); err != nil {
		return nil, err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}

	// Register reply ledger; nil when disabled
	if err := container.Provide(func(f *factory.LedgerFactory) (ledger.Ledger, error) {
		return f.CreateReplyLedger()
	}); err != nil {
		return nil, err
	}

	// Register reply service
	if err := container.Provide(func(
		f *factory.ResponderFactory,
		lf *factory.LedgerFactory,
		llmClient core.LLMClient,
		l ledger.Ledger,
		tp *utils.TextProcessor,
		logger *zap.Logger,
	) (*core.ReplyService, error) {
		var replyLedger core.ReplyLedger
		if l != nil {
			replyLedger = l
		} else {
			logger.Info("Reply ledger disabled")
		}
		return f.CreateReplyService(llmClient, replyLedger, lf, tp)
	}); err != nil {
		return nil, err
	}

	// Register mail adapters
	if err := container.Provide(func(f *factory.MailFactory) (ports.Mailbox, error) {
		return f.CreateMailbox()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.MailFactory) (ports.MailSender, error) {
		return f.CreateMailSender()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.MailFactory) *smtp.Composer {
		return f.CreateComposer()
	}); err != nil {
		return nil, err
	}

	// Register responder
	if err := container.Provide(func(
		f *factory.ResponderFactory,
		mailbox ports.Mailbox,
		sender ports.MailSender,
		composer *smtp.Composer,
		p *parser.Parser,
		service *core.ReplyService,
	) (*responder.Responder, error) {
		return f.CreateResponder(mailbox, sender, composer, p, service)
	}); err != nil {
		return nil, err
	}

	// Register intake server
	if err := container.Provide(func(f *factory.ResponderFactory, mailbox ports.Mailbox) *intake.Server {
		return f.CreateIntakeServer(mailbox)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
