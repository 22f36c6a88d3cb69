package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/llm-spam-replier/internal/core"
	"github.com/mikey/llm-spam-replier/internal/ports"
	"github.com/mikey/llm-spam-replier/internal/utils"
	"go.uber.org/zap"
)

// Parser converts raw RFC 5322 messages into core messages
type Parser struct {
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewParser creates a new message parser
func NewParser(logger *zap.Logger, textProcessor *utils.TextProcessor) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}
	return &Parser{
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ParseAll parses every raw message. Messages that cannot be parsed are
// reported and left out; they never stop the batch.
func (p *Parser) ParseAll(raws []ports.RawMessage) ([]core.Message, []*core.MessageError) {
	messages := make([]core.Message, 0, len(raws))
	var failed []*core.MessageError

	for i, raw := range raws {
		msg, err := p.Parse(raw.Data)
		if err != nil {
			failed = append(failed, &core.MessageError{ID: msg.ID, Index: i, Err: err})
			p.logger.Warn("Failed to parse message",
				zap.Uint32("uid", raw.UID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}

	return messages, failed
}

// Parse converts a single raw message. On failure the returned message carries
// whatever id could be read so the caller can report it.
func (p *Parser) Parse(raw []byte) (core.Message, error) {
	var msg core.Message

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return msg, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
	}
	header := reader.Header

	msg.ID = messageID(header)
	if msg.ID == "" {
		return msg, fmt.Errorf("%w: missing Message-ID", core.ErrMalformedMessage)
	}

	date, err := header.Date()
	if err != nil || date.IsZero() {
		return msg, fmt.Errorf("%w: missing or unparseable Date", core.ErrMalformedMessage)
	}
	msg.Date = date

	if ids := idList(header, "In-Reply-To"); len(ids) > 0 {
		msg.InReplyTo = ids[0]
	}
	msg.References = idList(header, "References")

	msg.Sender = textHeader(header, "From")
	msg.Recipient = textHeader(header, "X-Delivered-To")
	if msg.Recipient == "" {
		msg.Recipient = textHeader(header, "To")
	}
	msg.Subject = textHeader(header, "Subject")

	body, err := p.extractBody(reader)
	if err != nil {
		return msg, err
	}
	msg.Body = StripQuotedReply(p.textProcessor.Normalize(p.textProcessor.SanitizeUTF8(body)))
	if msg.Body == "" {
		p.logger.Debug("Message body is empty after removing quoted text",
			zap.String("message_id", msg.ID))
	}

	return msg, nil
}

// extractBody returns the first text/plain leaf, falling back to the first
// text/html leaf converted to plain text
func (p *Parser) extractBody(reader *mail.Reader) (string, error) {
	var plain, html string

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			if plain != "" || html != "" {
				// Keep what was read so far
				break
			}
			return "", fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
		}
		if part == nil {
			continue
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			contentType = "text/plain"
		}

		switch {
		case strings.EqualFold(contentType, "text/plain") && plain == "":
			data, err := io.ReadAll(part.Body)
			if err != nil {
				p.logger.Debug("Failed to read text/plain part", zap.Error(err))
				continue
			}
			plain = string(data)
		case strings.EqualFold(contentType, "text/html") && html == "":
			data, err := io.ReadAll(part.Body)
			if err != nil {
				p.logger.Debug("Failed to read text/html part", zap.Error(err))
				continue
			}
			html = string(data)
		}

		if plain != "" {
			break
		}
	}

	switch {
	case strings.TrimSpace(plain) != "":
		return plain, nil
	case strings.TrimSpace(html) != "":
		return HTMLToText(html), nil
	default:
		return "", fmt.Errorf("%w: no text body found", core.ErrMalformedMessage)
	}
}

func messageID(header mail.Header) string {
	if id, err := header.MessageID(); err == nil && id != "" {
		return core.NormalizeMessageID(id)
	}
	return core.NormalizeMessageID(header.Get("Message-Id"))
}

// idList reads a list of message ids, tolerating headers that do not follow
// the msg-id grammar
func idList(header mail.Header, key string) []string {
	if ids, err := header.MsgIDList(key); err == nil {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if id = core.NormalizeMessageID(id); id != "" {
				out = append(out, id)
			}
		}
		return out
	}

	var out []string
	for _, field := range strings.Fields(header.Get(key)) {
		if id := core.NormalizeMessageID(field); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func textHeader(header mail.Header, key string) string {
	if value, err := header.Text(key); err == nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(header.Get(key))
}
