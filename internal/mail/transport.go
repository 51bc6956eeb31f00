package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/config"
)

// Transport delivers messages. Verify checks the transport is usable before
// a batch of sends.
type Transport interface {
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg Message) error
}

// NewTransport returns an SMTP transport, or a logging transport when no SMTP
// host is configured.
func NewTransport(cfg config.MailConfig, logger *zap.Logger) Transport {
	if cfg.Host == "" {
		logger.Warn("SMTP_HOST not configured; emails will be logged instead of sent")
		return NewLogTransport(logger)
	}
	return NewSMTPTransport(cfg, logger)
}

// SMTPTransport opens one connection per message.
type SMTPTransport struct {
	cfg    config.MailConfig
	logger *zap.Logger
	dialer net.Dialer
}

// NewSMTPTransport builds the transport.
func NewSMTPTransport(cfg config.MailConfig, logger *zap.Logger) *SMTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPTransport{cfg: cfg, logger: logger}
}

// Verify dials, negotiates TLS and authenticates, then quits.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	client, stop, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer stop()
	defer client.Close()

	if err := client.Noop(); err != nil {
		return fmt.Errorf("smtp noop: %w", err)
	}
	return client.Quit()
}

// Send delivers msg to its single recipient.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	body, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	client, stop, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer stop()
	defer client.Close()

	if err := client.Mail(msg.From.Email); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(msg.To.Email); err != nil {
		return fmt.Errorf("add recipient %s: %w", msg.To.Email, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return client.Quit()
}

// connect returns an authenticated client. stop detaches the context watcher.
func (t *SMTPTransport) connect(ctx context.Context) (*smtp.Client, func() bool, error) {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	tlsConfig := &tls.Config{ServerName: t.cfg.Host}

	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("smtp connect: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Closing the connection unblocks any pending read once ctx is done.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	fail := func(err error) (*smtp.Client, func() bool, error) {
		stop()
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, errors.Join(err, ctxErr)
		}
		return nil, nil, err
	}

	if t.cfg.Encryption == "ssl" {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fail(fmt.Errorf("smtp tls handshake: %w", err))
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		return fail(fmt.Errorf("smtp client: %w", err))
	}

	if t.cfg.Encryption == "tls" {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return fail(errors.New("smtp server does not support STARTTLS"))
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return fail(fmt.Errorf("smtp starttls: %w", err))
		}
	}

	if t.cfg.Username != "" && t.cfg.Password != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return fail(fmt.Errorf("smtp auth: %w", err))
		}
	}

	return client, stop, nil
}

// LogTransport writes messages to the log instead of delivering them.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport builds the development transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Verify(context.Context) error { return nil }

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("to", msg.To.Email),
		zap.String("subject", msg.Subject),
	}
	if msg.Attachment != nil {
		fields = append(fields, zap.String("attachment", msg.Attachment.Filename))
	}
	t.logger.Info("email not sent; SMTP not configured", fields...)
	return nil
}
