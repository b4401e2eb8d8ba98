package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"time"

	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/certificate"
	"naturelife-cert/internal/config"
)

// smtpClient is the subset of *smtp.Client the notifier drives
type smtpClient interface {
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type dialFunc func(ctx context.Context, cfg config.NotifierConfig) (smtpClient, error)

// SMTPNotifier opens one relay session per certificate
type SMTPNotifier struct {
	cfg  config.NotifierConfig
	dial dialFunc
	now  func() time.Time
}

func NewSMTPNotifier(cfg config.NotifierConfig) *SMTPNotifier {
	if cfg.Body == "" {
		cfg.Body = DefaultBody
	}
	return &SMTPNotifier{cfg: cfg, dial: dialSMTP, now: time.Now}
}

func (n *SMTPNotifier) Notify(ctx context.Context, to string, art *certificate.Artifact) error {
	defer cleanup(art)

	rcpt, err := validateRecipient(to)
	if err != nil {
		return err
	}
	from := n.cfg.SenderAddress()

	msg, err := Compose(from, rcpt, n.cfg.Body, art, n.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	c, err := n.dial(ctx, n.cfg)
	if err != nil {
		return fmt.Errorf("%w: failed to connect to %s: %v", ErrDelivery, n.cfg.Address(), err)
	}
	defer c.Close()

	if !n.cfg.ImplicitTLS {
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return fmt.Errorf("%w: starttls: %v", ErrDelivery, err)
		}
	}
	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("%w: auth: %v", ErrDelivery, err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("%w: mail from: %v", ErrDelivery, err)
	}
	if err := c.Rcpt(rcpt); err != nil {
		return fmt.Errorf("%w: rcpt to: %v", ErrDelivery, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("%w: data: %v", ErrDelivery, err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("%w: write message: %v", ErrDelivery, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: message rejected: %v", ErrDelivery, err)
	}

	if err := c.Quit(); err != nil {
		logrus.WithError(err).Debug("SMTP quit failed after successful delivery")
	}

	logrus.WithFields(logrus.Fields{
		"to":          rcpt,
		"certificate": art.Name,
	}).Info("Certificate sent")
	return nil
}

func dialSMTP(ctx context.Context, cfg config.NotifierConfig) (smtpClient, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}

	var conn net.Conn
	var err error
	if cfg.ImplicitTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: cfg.Host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", cfg.Address())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", cfg.Address())
	}
	if err != nil {
		return nil, err
	}

	// The deadline covers the whole session so a stalled relay cannot hold
	// the batch.
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 2 * time.Minute
	}
	if err := conn.SetDeadline(time.Now().Add(sendTimeout)); err != nil {
		conn.Close()
		return nil, err
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}
