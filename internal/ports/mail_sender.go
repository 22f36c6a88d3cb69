package ports

import (
	"context"
)

// MailSender delivers composed messages
type MailSender interface {
	// Send delivers raw to the given recipients on behalf of from
	Send(ctx context.Context, from string, to []string, raw []byte) error
}
