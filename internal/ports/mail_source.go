package ports

import (
	"context"
)

// RawMessage is an unparsed message as fetched from a mail store
type RawMessage struct {
	// UID identifies the message within its store; opaque and never used for threading
	UID  uint32
	Data []byte
}

// MailSource fetches every message currently in the configured folder
type MailSource interface {
	// FetchAll returns the full, materialized contents of the folder
	FetchAll(ctx context.Context) ([]RawMessage, error)
}

// MailArchiver files a copy of a message into the configured folder
type MailArchiver interface {
	// Append adds a raw RFC 5322 message to the folder
	Append(ctx context.Context, raw []byte) error
}

// Mailbox is a folder that can be both read and appended to
type Mailbox interface {
	MailSource
	MailArchiver
}
