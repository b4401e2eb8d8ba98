package notifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/certificate"
	"naturelife-cert/internal/config"
)

const gmailAttempts = 3

// GmailNotifier sends certificates through the Gmail API
type GmailNotifier struct {
	send  func(ctx context.Context, msg *gmail.Message) error
	from  string
	body  string
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGmailNotifier creates a notifier authorised by an OAuth2 refresh token
func NewGmailNotifier(ctx context.Context, cfg config.GmailConfig, body string) (*GmailNotifier, error) {
	if cfg.UserEmail == "" {
		return nil, fmt.Errorf("gmail user email is required as the sender address")
	}
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	user := cfg.UserEmail
	if body == "" {
		body = DefaultBody
	}

	return &GmailNotifier{
		send: func(ctx context.Context, msg *gmail.Message) error {
			_, err := service.Users.Messages.Send(user, msg).Context(ctx).Do()
			return err
		},
		from:  cfg.UserEmail,
		body:  body,
		now:   time.Now,
		sleep: sleepContext,
	}, nil
}

func (n *GmailNotifier) Notify(ctx context.Context, to string, art *certificate.Artifact) error {
	defer cleanup(art)

	rcpt, err := validateRecipient(to)
	if err != nil {
		return err
	}

	raw, err := Compose(n.from, rcpt, n.body, art, n.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}

	// Only rate limiting is retried; every other failure is final.
	var lastErr error
	for attempt := 1; attempt <= gmailAttempts; attempt++ {
		err := n.send(ctx, msg)
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"to":          rcpt,
				"certificate": art.Name,
			}).Info("Certificate sent via Gmail")
			return nil
		}

		lastErr = err
		logrus.Warnf("Failed to send certificate (attempt %d/%d): %v", attempt, gmailAttempts, err)

		if !isRateLimited(err) || attempt == gmailAttempts {
			break
		}
		waitTime := time.Duration(attempt*attempt) * time.Second
		logrus.Infof("Rate limited, waiting %v before retry", waitTime)
		if err := n.sleep(ctx, waitTime); err != nil {
			break
		}
	}

	return fmt.Errorf("%w: gmail send: %v", ErrDelivery, lastErr)
}

// rateLimitReasons are the Gmail API error reasons worth retrying
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	for _, item := range apiErr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
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
