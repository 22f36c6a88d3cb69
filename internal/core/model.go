package core

import (
	"slices"
	"strings"
	"time"
)

// Message is a normalized unit of mail
type Message struct {
	ID         string
	InReplyTo  string
	References []string
	Date       time.Time
	Sender     string
	Recipient  string
	Subject    string
	Body       string
}

// IsFromMe reports whether the message was written by the mailbox owner
func (m *Message) IsFromMe(self SelfAddresses) bool {
	return self.Matches(m.Sender)
}

// ParentCandidates returns the ids that may identify this message's thread, in
// lookup order: In-Reply-To first, then References as declared.
func (m *Message) ParentCandidates() []string {
	candidates := make([]string, 0, len(m.References)+1)
	if m.InReplyTo != "" {
		candidates = append(candidates, m.InReplyTo)
	}
	for _, ref := range m.References {
		if ref != "" {
			candidates = append(candidates, ref)
		}
	}
	return candidates
}

func (m *Message) sameContent(other *Message) bool {
	return m.ID == other.ID &&
		m.InReplyTo == other.InReplyTo &&
		slices.Equal(m.References, other.References) &&
		m.Date.Equal(other.Date) &&
		m.Sender == other.Sender &&
		m.Recipient == other.Recipient &&
		m.Subject == other.Subject &&
		m.Body == other.Body
}

func (m *Message) validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return malformed("missing message id")
	}
	if m.Date.IsZero() {
		return malformed("missing or unparseable date")
	}
	return nil
}

// NormalizeMessageID strips the angle brackets and whitespace that surround
// message ids in mail headers
func NormalizeMessageID(id string) string {
	return strings.Trim(id, "\r\n\t <>")
}

// Reply is a generated answer to a thread, ready to be composed and sent
type Reply struct {
	ThreadID   string
	From       string
	To         string
	Subject    string
	Body       string
	InReplyTo  string
	References []string
	MessageID  string
	ModelUsed  string
}

// GeneratedReply is the raw output of an LLM for one conversation
type GeneratedReply struct {
	Body         string
	ModelUsed    string
	ProcessingID string
	GeneratedAt  time.Time
}

// LedgerEntry records that a message has been answered
type LedgerEntry struct {
	InReplyTo      string
	ThreadID       string
	ReplyMessageID string
	SentAt         time.Time
	ExpiresAt      time.Time
}
