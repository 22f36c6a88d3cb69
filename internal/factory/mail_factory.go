package factory

import (
	"fmt"

	"github.com/mikey/llm-spam-replier/internal/adapters/imap"
	"github.com/mikey/llm-spam-replier/internal/adapters/mbox"
	"github.com/mikey/llm-spam-replier/internal/adapters/smtp"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"go.uber.org/zap"
)

// MailFactory creates the mail store and transport adapters
type MailFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailFactory creates a new mail factory
func NewMailFactory(cfg *config.Config, logger *zap.Logger) *MailFactory {
	return &MailFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMailbox creates the folder replies are read from and filed into
func (f *MailFactory) CreateMailbox() (ports.Mailbox, error) {
	source := f.cfg.GetString("mail.source")

	switch source {
	case "imap":
		imapCfg, err := f.cfg.GetIMAP()
		if err != nil {
			return nil, err
		}
		return imap.NewMailbox(imapCfg, f.logger.Named("imap")), nil
	case "mbox":
		return mbox.NewMailbox(f.cfg.GetString("mail.mbox_path"), f.logger.Named("mbox")), nil
	default:
		return nil, fmt.Errorf("unsupported mail source: %s", source)
	}
}

// CreateMailSender creates the SMTP sender used to deliver replies
func (f *MailFactory) CreateMailSender() (ports.MailSender, error) {
	smtpCfg, err := f.cfg.GetSMTP()
	if err != nil {
		return nil, err
	}
	return smtp.NewSender(smtpCfg, f.logger.Named("smtp")), nil
}

// CreateComposer creates the reply composer
func (f *MailFactory) CreateComposer() *smtp.Composer {
	return smtp.NewComposer(f.cfg.GetReply().MessageIDHost)
}
