package whitelist

import (
	"strings"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// Checker matches sender addresses against a list of domains that should
// never receive a generated reply
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if domain != "" {
			normalizedDomains = append(normalizedDomains, domain)
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized whitelist checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// IsWhitelisted checks if the sender's domain, or a parent of it, is in the whitelist
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain := senderDomain(from)
	if domain == "" {
		return false
	}

	for _, whitelisted := range c.domains {
		if domain == whitelisted || strings.HasSuffix(domain, "."+whitelisted) {
			if c.logger != nil {
				c.logger.Debug("Domain is whitelisted",
					zap.String("domain", domain),
					zap.String("email", from))
			}
			return true
		}
	}

	return false
}

func senderDomain(from string) string {
	address := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(address[at+1:], "> "))
}
