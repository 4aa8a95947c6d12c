package email

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
)

// Message is one outgoing email with a plain-text and an HTML part
type Message struct {
	FromName string
	To       string
	Subject  string
	Text     string
	HTML     string
}

// SMTPConfig holds configuration for SMTP server
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	UseTLS    bool // implicit TLS; otherwise STARTTLS is used when offered
}

// Sender delivers messages over SMTP
type Sender struct {
	config SMTPConfig
	logger zerolog.Logger
	dialer net.Dialer
}

// NewSender creates a new Sender
func NewSender(config SMTPConfig, logger zerolog.Logger) *Sender {
	return &Sender{
		config: config,
		logger: logger.With().Str("component", "smtp").Logger(),
	}
}

// Enabled reports whether an SMTP server is configured
func (s *Sender) Enabled() bool {
	return s.config.Host != ""
}

// Send delivers msg. Errors wrap apperrors.ErrPermanentDelivery for 5xx
// replies and bad addresses, apperrors.ErrTransientDelivery otherwise.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return fmt.Errorf("%w: invalid recipient address %q: %v", apperrors.ErrPermanentDelivery, msg.To, err)
	}

	// Without a server the message is only logged (development)
	if !s.Enabled() {
		s.logger.Warn().
			Str("toEmail", msg.To).
			Str("subject", msg.Subject).
			Msg("SMTP host not configured - email not sent")
		return nil
	}

	raw, err := buildMessage(s.config.FromEmail, msg)
	if err != nil {
		return fmt.Errorf("%w: building message: %v", apperrors.ErrPermanentDelivery, err)
	}

	if err := s.deliver(ctx, msg.To, raw); err != nil {
		s.logger.Error().Err(err).Str("toEmail", msg.To).Msg("Failed to send email")
		return classifySMTPError(err)
	}

	return nil
}

func (s *Sender) deliver(ctx context.Context, to string, raw []byte) error {
	serverAddress := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	conn, err := s.dialer.DialContext(ctx, "tcp", serverAddress)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: s.config.Host, MinVersion: tls.VersionTLS12}
	if s.config.UseTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if !s.config.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err = client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(raw); err != nil {
		return fmt.Errorf("failed to write email message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// classifySMTPError maps SMTP failures onto the delivery error classes.
// Permanent negative completion replies (5yz) are not worth retrying.
func classifySMTPError(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 500 && protoErr.Code < 600 {
		return fmt.Errorf("%w: %v", apperrors.ErrPermanentDelivery, err)
	}
	return fmt.Errorf("%w: %v", apperrors.ErrTransientDelivery, err)
}

// buildMessage renders a multipart/alternative RFC 5322 message
func buildMessage(fromEmail string, msg Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err = textPart.Write([]byte(msg.Text)); err != nil {
		return nil, err
	}

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err = htmlPart.Write([]byte(msg.HTML)); err != nil {
		return nil, err
	}
	if err = mw.Close(); err != nil {
		return nil, err
	}

	from := mail.Address{Name: msg.FromName, Address: fromEmail}
	to := mail.Address{Address: msg.To}

	var out bytes.Buffer
	headers := [][2]string{
		{"From", from.String()},
		{"To", to.String()},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", randomID(), domainOf(fromEmail))},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary())},
	}
	for _, h := range headers {
		fmt.Fprintf(&out, "%s: %s\r\n", h[0], h[1])
	}
	out.WriteString("\r\n")
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

func randomID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b)
}

func domainOf(address string) string {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == '@' {
			return address[i+1:]
		}
	}
	return "localhost"
}
