package smtp

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-spam-replier/internal/config"
	"go.uber.org/zap/zaptest"
)

type received struct {
	from string
	to   []string
	data []byte
	tls  bool
}

type recordingBackend struct {
	mu       sync.Mutex
	messages []received
}

func (b *recordingBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	_, isTLS := c.TLSConnectionState()
	return &recordingSession{backend: b, tls: isTLS}, nil
}

func (b *recordingBackend) all() []received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]received(nil), b.messages...)
}

type recordingSession struct {
	backend *recordingBackend
	tls     bool
	from    string
	to      []string
}

func (s *recordingSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *recordingSession) Logout() error { return nil }

func (s *recordingSession) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *recordingSession) Rcpt(to string, opts *smtp.RcptOptions) error {
	if to == "nobody@example.org" {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "No such user"}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *recordingSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.messages = append(s.backend.messages, received{from: s.from, to: s.to, data: data, tls: s.tls})
	return nil
}

func selfSignedConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}}}
}

// startServer runs a loopback SMTP server and returns a sender config
// pointing at it
func startServer(t *testing.T, backend *recordingBackend, tlsConfig *tls.Config) config.SMTPConfig {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	server := smtp.NewServer(backend)
	server.Domain = "mx.example.org"
	server.TLSConfig = tlsConfig
	server.AllowInsecureAuth = true
	go server.Serve(ln)
	t.Cleanup(func() { server.Close() })

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return config.SMTPConfig{Host: host, Port: port, Timeout: 5 * time.Second}
}

const replyData = "From: arthur@example.org\r\n" +
	"To: prince@spam.example\r\n" +
	"Subject: Re: Urgent\r\n" +
	"\r\n" +
	"Where do I sign?\r\n"

func TestSendOverSTARTTLS(t *testing.T) {
	backend := &recordingBackend{}
	cfg := startServer(t, backend, selfSignedConfig(t))
	cfg.StartTLS = true
	cfg.InsecureSkipVerify = true

	sender := NewSender(cfg, zaptest.NewLogger(t))
	if err := sender.Send(context.Background(), "Arthur <arthur@example.org>", []string{"prince@spam.example"}, []byte(replyData)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := backend.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivered message, got %d", len(got))
	}
	if !got[0].tls {
		t.Fatalf("expected the session to be upgraded to TLS")
	}
	if got[0].from != "arthur@example.org" {
		t.Fatalf("unexpected envelope sender %q", got[0].from)
	}
	if !strings.Contains(string(got[0].data), "Where do I sign?") {
		t.Fatalf("unexpected data %q", got[0].data)
	}
}

func TestSendSTARTTLSUnsupported(t *testing.T) {
	cfg := startServer(t, &recordingBackend{}, nil)
	cfg.StartTLS = true

	sender := NewSender(cfg, zaptest.NewLogger(t))
	if err := sender.Send(context.Background(), "arthur@example.org", []string{"prince@spam.example"}, []byte(replyData)); err == nil {
		t.Fatalf("expected STARTTLS to fail against a plain-text server")
	}
}

func TestSendPartialRecipients(t *testing.T) {
	backend := &recordingBackend{}
	cfg := startServer(t, backend, nil)

	sender := NewSender(cfg, zaptest.NewLogger(t))
	err := sender.Send(context.Background(), "arthur@example.org",
		[]string{"nobody@example.org", "Prince <prince@spam.example>"}, []byte(replyData))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := backend.all()
	if len(got) != 1 || len(got[0].to) != 1 || got[0].to[0] != "prince@spam.example" {
		t.Fatalf("unexpected deliveries %+v", got)
	}
	if got[0].tls {
		t.Fatalf("plain-text session reported TLS")
	}

	if err := sender.Send(context.Background(), "arthur@example.org", []string{"nobody@example.org"}, []byte(replyData)); err == nil {
		t.Fatalf("expected error when every recipient is rejected")
	}
	if err := sender.Send(context.Background(), "arthur@example.org", nil, []byte(replyData)); err == nil {
		t.Fatalf("expected error without recipients")
	}
}

func TestSendConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	sender := NewSender(config.SMTPConfig{Host: "127.0.0.1", Port: addr.Port, Timeout: time.Second}, zaptest.NewLogger(t))
	err = sender.Send(context.Background(), "arthur@example.org", []string{"prince@spam.example"}, []byte(replyData))
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected a dial error, got %v", err)
	}
}
