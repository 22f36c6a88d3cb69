package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage is returned for input lacking a usable id, date or body
	ErrMalformedMessage = errors.New("malformed message")
	// ErrDuplicateMessageID is returned when an id is seen twice with differing content
	ErrDuplicateMessageID = errors.New("duplicate message id")
	// ErrNoThirdPartyMessage is returned for threads made only of self-authored messages
	ErrNoThirdPartyMessage = errors.New("thread has no third-party message")
	// ErrEmptyReply is returned when the LLM produced no usable text
	ErrEmptyReply = errors.New("empty reply from LLM")
)

// MessageError ties an error to a single input message
type MessageError struct {
	ID    string
	Index int
	Err   error
}

func (e *MessageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("message #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("message %s: %v", e.ID, e.Err)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, reason)
}

// MessageErrorIDs returns the ids (or "#index" placeholders) of the given errors
func MessageErrorIDs(errs []*MessageError) []string {
	ids := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.ID != "" {
			ids = append(ids, e.ID)
		} else {
			ids = append(ids, fmt.Sprintf("#%d", e.Index))
		}
	}
	return ids
}
