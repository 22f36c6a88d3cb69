package mbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"go.uber.org/zap"
)

// Mailbox is a folder stored as a single mbox file
type Mailbox struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewMailbox creates a new mbox mailbox
func NewMailbox(path string, logger *zap.Logger) *Mailbox {
	return &Mailbox{
		path:   path,
		logger: logger,
	}
}

// Path returns the mbox file path
func (m *Mailbox) Path() string {
	return m.path
}

// FetchAll reads every message in the mbox file. A missing file is an empty folder.
func (m *Mailbox) FetchAll(ctx context.Context) ([]ports.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info("Mbox file does not exist yet", zap.String("path", m.path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open mbox %s: %w", m.path, err)
	}
	defer file.Close()

	var messages []ports.RawMessage
	reader := mbox.NewReader(bufio.NewReader(file))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read mbox %s: %w", m.path, err)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read message %d from mbox: %w", len(messages)+1, err)
		}
		messages = append(messages, ports.RawMessage{
			UID:  uint32(len(messages) + 1),
			Data: data,
		})
	}

	m.logger.Info("Fetched messages",
		zap.String("mbox", m.path),
		zap.Int("count", len(messages)))

	return messages, nil
}

// Append adds raw to the end of the mbox file
func (m *Mailbox) Append(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create mbox directory: %w", err)
	}
	file, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open mbox %s: %w", m.path, err)
	}
	defer file.Close()

	from, date := envelope(raw)
	writer := mbox.NewWriter(file)
	w, err := writer.CreateMessage(from, date)
	if err != nil {
		return fmt.Errorf("failed to start mbox message: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("failed to write mbox message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish mbox message: %w", err)
	}
	return nil
}

// envelope picks the mbox "From " line values out of the message header
func envelope(raw []byte) (string, time.Time) {
	from, date := "MAILER-DAEMON", time.Now()

	reader, _ := mail.CreateReader(bytes.NewReader(raw))
	if reader == nil {
		return from, date
	}
	defer reader.Close()

	if addrs, err := reader.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		from = addrs[0].Address
	}
	if d, err := reader.Header.Date(); err == nil && !d.IsZero() {
		date = d
	}
	return from, date
}
