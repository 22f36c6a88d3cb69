package core

import (
	"strings"

	"github.com/emersion/go-message/mail"
)

// SelfAddresses is the set of address or domain suffixes owned by the mailbox
type SelfAddresses struct {
	suffixes []string
}

// NewSelfAddresses normalizes the configured suffixes, dropping empty entries
func NewSelfAddresses(entries []string) SelfAddresses {
	suffixes := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		suffixes = append(suffixes, entry)
	}
	return SelfAddresses{suffixes: suffixes}
}

// Matches reports whether the bare form of address ends with any suffix
func (s SelfAddresses) Matches(address string) bool {
	bare := BareAddress(address)
	if bare == "" {
		return false
	}
	for _, suffix := range s.suffixes {
		if strings.HasSuffix(bare, suffix) {
			return true
		}
	}
	return false
}

// Suffixes returns a copy of the normalized suffixes
func (s SelfAddresses) Suffixes() []string {
	return append([]string(nil), s.suffixes...)
}

// BareAddress extracts the lowercase addr-spec from a "Name <addr>" string
func BareAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if parsed, err := mail.ParseAddress(address); err == nil {
		return strings.ToLower(parsed.Address)
	}
	// Fall back to whatever sits between the last pair of angle brackets.
	if start := strings.LastIndex(address, "<"); start >= 0 {
		if end := strings.LastIndex(address, ">"); end > start {
			address = address[start+1 : end]
		}
	}
	return strings.ToLower(strings.TrimSpace(address))
}
