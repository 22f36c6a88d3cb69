package smtp

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/mikey/llm-spam-replier/internal/core"
)

// Composer renders replies as RFC 5322 messages
type Composer struct {
	messageIDHost string
	now           func() time.Time
}

// NewComposer creates a new composer. messageIDHost is the host part of
// generated Message-IDs; when empty the sender's domain is used, since some
// servers replace ids whose host does not match and the thread would be lost.
func NewComposer(messageIDHost string) *Composer {
	return &Composer{
		messageIDHost: messageIDHost,
		now:           time.Now,
	}
}

// Compose assigns reply a fresh Message-ID and renders it
func (c *Composer) Compose(reply *core.Reply) ([]byte, error) {
	from := parseAddress(reply.From)
	if from.Address == "" {
		return nil, fmt.Errorf("reply for thread %s has no sender address", reply.ThreadID)
	}
	to := parseAddress(reply.To)
	if to.Address == "" {
		return nil, fmt.Errorf("reply for thread %s has no recipient address", reply.ThreadID)
	}

	reply.MessageID = c.newMessageID(from.Address)

	var h mail.Header
	h.SetDate(c.now().UTC())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(reply.Subject)
	h.SetMessageID(reply.MessageID)
	if reply.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{reply.InReplyTo})
	}
	if refs := references(reply); len(refs) > 0 {
		h.SetMsgIDList("References", refs)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, reply.Body); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return buf.Bytes(), nil
}

func (c *Composer) newMessageID(fromAddress string) string {
	host := c.messageIDHost
	if host == "" {
		if at := strings.LastIndex(fromAddress, "@"); at >= 0 {
			host = fromAddress[at+1:]
		}
	}
	if host == "" {
		host = "localhost"
	}
	return uuid.NewString() + "@" + host
}

// references lists the thread chain ending with the message being answered
func references(reply *core.Reply) []string {
	seen := make(map[string]struct{}, len(reply.References)+1)
	refs := make([]string, 0, len(reply.References)+1)
	for _, id := range append(append([]string(nil), reply.References...), reply.InReplyTo) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, id)
	}
	// Keep the answered message last
	if n := len(refs); n > 1 && reply.InReplyTo != "" && refs[n-1] != reply.InReplyTo {
		for i, id := range refs {
			if id == reply.InReplyTo {
				refs = append(refs[:i], refs[i+1:]...)
				break
			}
		}
		refs = append(refs, reply.InReplyTo)
	}
	return refs
}

func parseAddress(raw string) *mail.Address {
	if addr, err := mail.ParseAddress(raw); err == nil {
		return addr
	}
	return &mail.Address{Address: core.BareAddress(raw)}
}
