package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/core"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Sender delivers composed replies through an SMTP server
type Sender struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSender creates a new SMTP sender
func NewSender(cfg config.SMTPConfig, logger *zap.Logger) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Sender{cfg: cfg, logger: logger}
}

// Send implements ports.MailSender
func (s *Sender) Send(ctx context.Context, from string, to []string, raw []byte) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := c.Mail(core.BareAddress(from), nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range to {
		if err := c.Rcpt(core.BareAddress(recipient), nil); err != nil {
			s.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(raw); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to complete DATA command: %w", err)
	}

	if err := c.Quit(); err != nil {
		s.logger.Debug("QUIT failed", zap.Error(err))
	}

	s.logger.Debug("Sent message",
		zap.String("from", from),
		zap.Strings("to", to),
		zap.Int("size", len(raw)))
	return nil
}

func (s *Sender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set connection deadline: %w", err)
	}

	if s.cfg.StartTLS && !s.cfg.TLS {
		// NewClientStartTLS greets the server itself
		c, err := smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
		return c, nil
	}

	if s.cfg.TLS {
		conn = tls.Client(conn, tlsConfig)
	}

	c := smtp.NewClient(conn)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO failed: %w", err)
	}

	return c, nil
}
