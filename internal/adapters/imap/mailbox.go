package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/mikey/llm-spam-replier/internal/config"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"go.uber.org/zap"
)

// Client is the subset of the go-imap client used by Mailbox
type Client interface {
	Login(username, password string) error
	Logout() error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Create(name string) error
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Append(mailbox string, flags []string, date time.Time, msg imap.Literal) error
}

// Connector opens an authenticated IMAP session
type Connector func(cfg config.IMAPConfig) (Client, error)

// Mailbox reads and appends to a single IMAP folder
type Mailbox struct {
	cfg       config.IMAPConfig
	logger    *zap.Logger
	connector Connector
}

// NewMailbox creates a new IMAP mailbox
func NewMailbox(cfg config.IMAPConfig, logger *zap.Logger) *Mailbox {
	return &Mailbox{
		cfg:       cfg,
		logger:    logger,
		connector: Connect,
	}
}

// WithConnector replaces the function used to open sessions
func (m *Mailbox) WithConnector(connector Connector) *Mailbox {
	m.connector = connector
	return m
}

// Connect dials the server, upgrades the connection if configured and logs in
func Connect(cfg config.IMAPConfig) (Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	tlsConfig := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	var c *imapclient.Client
	var err error
	if cfg.TLS {
		c, err = imapclient.DialTLS(addr, tlsConfig)
	} else {
		c, err = imapclient.Dial(addr)
		if err == nil && cfg.StartTLS {
			if err := c.StartTLS(tlsConfig); err != nil {
				_ = c.Logout()
				return nil, fmt.Errorf("failed to start TLS with %s: %w", addr, err)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
	}

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to log in as %s: %w", cfg.Username, err)
	}

	return c, nil
}

func (m *Mailbox) withClient(ctx context.Context, fn func(Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := m.connector(m.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Logout(); err != nil {
			m.logger.Debug("IMAP logout failed", zap.Error(err))
		}
	}()
	return fn(client)
}

// FetchAll downloads every message in the folder. The result is fully
// materialized before it is returned.
func (m *Mailbox) FetchAll(ctx context.Context) ([]ports.RawMessage, error) {
	var messages []ports.RawMessage

	err := m.withClient(ctx, func(c Client) error {
		if _, err := c.Select(m.cfg.Mailbox, true); err != nil {
			return fmt.Errorf("failed to select mailbox %s: %w", m.cfg.Mailbox, err)
		}

		uids, err := c.UidSearch(imap.NewSearchCriteria())
		if err != nil {
			return fmt.Errorf("failed to search mailbox %s: %w", m.cfg.Mailbox, err)
		}
		if len(uids) == 0 {
			return nil
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(uids...)
		section := &imap.BodySectionName{Peek: true}
		items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

		ch := make(chan *imap.Message, len(uids))
		done := make(chan error, 1)
		go func() {
			done <- c.UidFetch(seqset, items, ch)
		}()

		for msg := range ch {
			if msg == nil {
				continue
			}
			body := msg.GetBody(section)
			if body == nil {
				m.logger.Warn("Message body not available", zap.Uint32("uid", msg.Uid))
				continue
			}
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, body); err != nil {
				m.logger.Warn("Failed to read message body", zap.Uint32("uid", msg.Uid), zap.Error(err))
				continue
			}
			messages = append(messages, ports.RawMessage{UID: msg.Uid, Data: buf.Bytes()})
		}

		if err := <-done; err != nil {
			return fmt.Errorf("failed to fetch messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].UID < messages[j].UID })

	m.logger.Info("Fetched messages",
		zap.String("mailbox", m.cfg.Mailbox),
		zap.Int("count", len(messages)))

	return messages, nil
}

// Append files raw into the folder, marked as seen
func (m *Mailbox) Append(ctx context.Context, raw []byte) error {
	return m.withClient(ctx, func(c Client) error {
		if err := c.Append(m.cfg.Mailbox, []string{imap.SeenFlag}, time.Now(), bytes.NewBuffer(raw)); err != nil {
			return fmt.Errorf("failed to append to mailbox %s: %w", m.cfg.Mailbox, err)
		}
		return nil
	})
}

// EnsureMailbox creates the folder when it does not exist yet
func (m *Mailbox) EnsureMailbox(ctx context.Context) error {
	return m.withClient(ctx, func(c Client) error {
		if _, err := c.Select(m.cfg.Mailbox, true); err == nil {
			return nil
		}
		if err := c.Create(m.cfg.Mailbox); err != nil {
			return fmt.Errorf("failed to create mailbox %s: %w", m.cfg.Mailbox, err)
		}
		m.logger.Info("Created mailbox", zap.String("mailbox", m.cfg.Mailbox))
		return nil
	})
}
