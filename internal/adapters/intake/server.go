package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"go.uber.org/zap"
)

const archiveTimeout = 30 * time.Second

// Server accepts forwarded spam over SMTP and files it into the reply folder
type Server struct {
	cfg      config.IntakeConfig
	archiver ports.MailArchiver
	logger   *zap.Logger

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

// NewServer creates a new intake server
func NewServer(cfg config.IntakeConfig, archiver ports.MailArchiver, logger *zap.Logger) *Server {
	if cfg.Domain == "" {
		cfg.Domain = "localhost"
	}
	return &Server{
		cfg:      cfg,
		archiver: archiver,
		logger:   logger,
	}
}

// Start starts listening in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("intake server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}

	server := smtp.NewServer(&backend{server: s})
	server.Domain = s.cfg.Domain
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	if s.cfg.MaxMessageBytes > 0 {
		server.MaxMessageBytes = s.cfg.MaxMessageBytes
	}
	server.MaxRecipients = 50
	server.AllowInsecureAuth = true

	s.server = server
	s.listener = ln

	s.logger.Info("Intake server starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			s.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound listen address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the intake server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	s.listener = nil
	return err
}

// deliver files one message, tagging it with the envelope recipient so the
// parser can tell which of our addresses it was sent to
func (s *Server) deliver(rcpt string, data []byte) error {
	if rcpt != "" && !hasHeader(data, "X-Delivered-To") {
		data = append([]byte("X-Delivered-To: "+rcpt+"\r\n"), data...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := s.archiver.Append(ctx, data); err != nil {
		return fmt.Errorf("failed to archive message: %w", err)
	}
	return nil
}

// hasHeader reports whether the header block of data contains name
func hasHeader(data []byte, name string) bool {
	head := data
	if i := bytes.Index(data, []byte("\r\n\r\n")); i >= 0 {
		head = data[:i]
	} else if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		head = data[:i]
	}
	prefix := []byte(name + ":")
	for _, line := range bytes.Split(head, []byte("\n")) {
		if len(line) >= len(prefix) && bytes.EqualFold(line[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}

// backend implements smtp.Backend
type backend struct {
	server *Server
}

// NewSession implements smtp.Backend
func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{server: b.server}, nil
}

// session implements smtp.Session
type session struct {
	server     *Server
	sender     string
	recipients []string
}

// Reset implements smtp.Session
func (s *session) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Logout implements smtp.Session
func (s *session) Logout() error {
	return nil
}

// Mail implements smtp.Session
func (s *session) Mail(from string, opts *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt implements smtp.Session
func (s *session) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data implements smtp.Session
func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read message data: %w", err)
	}

	var rcpt string
	if len(s.recipients) > 0 {
		rcpt = core.BareAddress(s.recipients[0])
	}

	if err := s.server.deliver(rcpt, data); err != nil {
		s.server.logger.Error("Failed to file incoming message",
			zap.String("sender", s.sender),
			zap.Error(err))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary failure filing message",
		}
	}

	s.server.logger.Info("Filed incoming message",
		zap.String("sender", s.sender),
		zap.Strings("recipients", s.recipients),
		zap.Int("size", len(data)))
	return nil
}
