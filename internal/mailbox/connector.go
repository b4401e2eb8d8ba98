package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/config"
)

// Connector opens authenticated mailbox sessions
type Connector struct {
	cfg   config.MailboxConfig
	auth  Authenticator
	sleep func(ctx context.Context, d time.Duration) error
}

// NewConnector creates a connector for the configured mailbox
func NewConnector(cfg config.MailboxConfig) (*Connector, error) {
	auth, err := newAuthenticator(cfg.AuthMethod, cfg.LoginUsername(), cfg.Password)
	if err != nil {
		return nil, err
	}
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &Connector{cfg: cfg, auth: auth, sleep: sleepContext}, nil
}

// Connect dials, authenticates and selects the folder. Connection failures
// are retried with exponential backoff up to MaxRetries times.
func (c *Connector) Connect(ctx context.Context) (*Session, error) {
	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}

		session, err := c.connectOnce()
		if err == nil {
			return session, nil
		}
		if errors.Is(err, ErrAuthentication) || attempt >= c.cfg.MaxRetries {
			return nil, err
		}

		wait := backoff * time.Duration(1<<attempt)
		logrus.WithFields(logrus.Fields{
			"host":    c.cfg.Host,
			"attempt": attempt + 1,
			"wait":    wait,
		}).WithError(err).Warn("Mailbox connection failed, retrying")

		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}
	}
}

func (c *Connector) connectOnce() (*Session, error) {
	addr := c.cfg.Address()

	var cl *client.Client
	var err error
	if c.cfg.TLS {
		cl, err = client.DialTLS(addr, &tls.Config{
			ServerName:         c.cfg.Host,
			InsecureSkipVerify: c.cfg.TLSSkipVerify,
		})
	} else {
		cl, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %v", ErrConnection, addr, err)
	}

	if c.cfg.Debug {
		cl.SetDebug(os.Stderr)
	}

	wantCleanup := true
	defer func() {
		if wantCleanup {
			_ = cl.Logout()
		}
	}()

	if err := c.auth.Authenticate(cl); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("%w: failed to authenticate: %v", ErrConnection, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	if _, err := cl.Select(c.cfg.Folder, false); err != nil {
		return nil, fmt.Errorf("%w: failed to select %s: %v", ErrConnection, c.cfg.Folder, err)
	}

	logrus.WithFields(logrus.Fields{
		"host":   c.cfg.Host,
		"folder": c.cfg.Folder,
	}).Info("Connected to mailbox")

	wantCleanup = false
	return &Session{client: cl, folder: c.cfg.Folder}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
