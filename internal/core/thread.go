package core

import (
	"sort"
)

// Thread is a set of messages forming one conversation. Its identity is the id
// of the message that anchored it; two threads with the same ID are equal.
type Thread struct {
	ID       string
	Messages []Message
}

// NewThread creates a thread anchored on root
func NewThread(root Message) *Thread {
	return &Thread{
		ID:       root.ID,
		Messages: []Message{root},
	}
}

// AddMessage inserts m keeping Messages sorted ascending by date. Messages with
// equal dates keep their insertion order. It returns false, leaving the thread
// untouched, when a message with the same id is already present.
func (t *Thread) AddMessage(m Message) bool {
	if t.Contains(m.ID) {
		return false
	}
	i := sort.Search(len(t.Messages), func(i int) bool {
		return t.Messages[i].Date.After(m.Date)
	})
	t.Messages = append(t.Messages, Message{})
	copy(t.Messages[i+1:], t.Messages[i:])
	t.Messages[i] = m
	return true
}

// Contains reports whether a message with the given id belongs to the thread
func (t *Thread) Contains(id string) bool {
	return t.Message(id) != nil
}

// Message returns the message with the given id, or nil
func (t *Thread) Message(id string) *Message {
	for i := range t.Messages {
		if t.Messages[i].ID == id {
			return &t.Messages[i]
		}
	}
	return nil
}

// Len returns the number of messages in the thread
func (t *Thread) Len() int {
	return len(t.Messages)
}

// Equal compares threads by identity only
func (t *Thread) Equal(other *Thread) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ID == other.ID
}

// MessageIDs returns the message ids in chronological order
func (t *Thread) MessageIDs() []string {
	ids := make([]string, len(t.Messages))
	for i := range t.Messages {
		ids[i] = t.Messages[i].ID
	}
	return ids
}
