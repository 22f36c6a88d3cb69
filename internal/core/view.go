package core

import (
	"fmt"
	"time"
)

// The accessors below recompute from Messages on every call; a thread may still
// be growing while callers hold it.

// Subject returns the subject of the chronologically first message
func (t *Thread) Subject() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[0].Subject
}

// FirstNonSelfMessage returns the earliest message not written by the mailbox owner
func (t *Thread) FirstNonSelfMessage(self SelfAddresses) (*Message, error) {
	for i := range t.Messages {
		if !t.Messages[i].IsFromMe(self) {
			return &t.Messages[i], nil
		}
	}
	return nil, fmt.Errorf("thread %s: %w", t.ID, ErrNoThirdPartyMessage)
}

// OriginatingSender returns the sender of the first third-party message
func (t *Thread) OriginatingSender(self SelfAddresses) (string, error) {
	m, err := t.FirstNonSelfMessage(self)
	if err != nil {
		return "", err
	}
	return m.Sender, nil
}

// OriginatingRecipient returns the recipient of the first third-party message
func (t *Thread) OriginatingRecipient(self SelfAddresses) (string, error) {
	m, err := t.FirstNonSelfMessage(self)
	if err != nil {
		return "", err
	}
	return m.Recipient, nil
}

// LastMessage returns the chronologically last message
func (t *Thread) LastMessage() (*Message, bool) {
	if len(t.Messages) == 0 {
		return nil, false
	}
	return &t.Messages[len(t.Messages)-1], true
}

// AwaitingReply reports whether the last message came from a third party
func (t *Thread) AwaitingReply(self SelfAddresses) bool {
	last, ok := t.LastMessage()
	return ok && !last.IsFromMe(self)
}

// LastActivity returns the date of the last message
func (t *Thread) LastActivity() time.Time {
	last, ok := t.LastMessage()
	if !ok {
		return time.Time{}
	}
	return last.Date
}
