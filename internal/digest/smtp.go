package digest

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"

	"BioMedNews/internal/ports"
)

// SMTPOptions carries the mail relay connection settings.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// SMTPSender delivers digests through an SMTP relay as multipart/alternative
// mail with plain-text and HTML bodies.
type SMTPSender struct {
	opts   SMTPOptions
	logger *slog.Logger
}

var _ ports.DigestSender = (*SMTPSender)(nil)

// NewSMTPSender keeps relay settings for later delivery attempts.
func NewSMTPSender(opts SMTPOptions, logger *slog.Logger) *SMTPSender {
	if opts.Port == 0 {
		opts.Port = 587
	}
	return &SMTPSender{opts: opts, logger: logger}
}

// Send connects to the relay, upgrades to TLS when offered, authenticates,
// and submits the digest to one recipient.
func (s *SMTPSender) Send(ctx context.Context, digest ports.Digest, to string) error {
	if s.opts.Host == "" || s.opts.From == "" {
		return fmt.Errorf("smtp sender misconfigured")
	}

	msg, err := buildMessage(digest, s.opts.From, to)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp relay: %w", err)
	}

	client, err := smtp.NewClient(conn, s.opts.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.opts.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.opts.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.opts.Username != "" && s.opts.Password != "" {
		auth := smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.opts.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}

	s.info("digest email sent", "to", to)
	return nil
}

func (s *SMTPSender) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

// buildMessage assembles RFC 5322 headers and a multipart/alternative body.
// The plain-text part comes first so HTML-capable clients prefer the second.
func buildMessage(digest ports.Digest, from, to string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", digest.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := text.Write([]byte(digest.Text)); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}

	html, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	if _, err := html.Write([]byte(digest.HTML)); err != nil {
		return nil, fmt.Errorf("write html part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	return buf.Bytes(), nil
}
