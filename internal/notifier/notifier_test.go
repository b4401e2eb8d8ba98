package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/smtp"
	"os"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"naturelife-cert/internal/certificate"
	"naturelife-cert/internal/config"
)

type bufferCloser struct {
	bytes.Buffer
	closeErr error
}

func (b *bufferCloser) Close() error { return b.closeErr }

type fakeSMTPClient struct {
	calls   []string
	from    string
	rcpt    string
	data    bufferCloser
	failOn  string
	closed  int
	tlsName string
}

func (f *fakeSMTPClient) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return errors.New("550 rejected")
	}
	return nil
}

func (f *fakeSMTPClient) StartTLS(cfg *tls.Config) error {
	f.tlsName = cfg.ServerName
	return f.step("starttls")
}
func (f *fakeSMTPClient) Auth(a smtp.Auth) error { return f.step("auth") }
func (f *fakeSMTPClient) Mail(from string) error {
	f.from = from
	return f.step("mail")
}
func (f *fakeSMTPClient) Rcpt(to string) error {
	f.rcpt = to
	return f.step("rcpt")
}
func (f *fakeSMTPClient) Data() (io.WriteCloser, error) {
	if err := f.step("data"); err != nil {
		return nil, err
	}
	if f.failOn == "data-close" {
		f.data.closeErr = errors.New("554 message refused")
	}
	return &f.data, nil
}
func (f *fakeSMTPClient) Quit() error { return f.step("quit") }
func (f *fakeSMTPClient) Close() error {
	f.closed++
	return nil
}

func testNotifierConfig() config.NotifierConfig {
	return config.NotifierConfig{
		Host:     "smtp.example.org",
		Port:     587,
		Username: "naturelife@example.org",
		Password: "secret",
	}
}

func newTestNotifier(client *fakeSMTPClient) (*SMTPNotifier, *int) {
	n := NewSMTPNotifier(testNotifierConfig())
	dials := 0
	n.dial = func(ctx context.Context, cfg config.NotifierConfig) (smtpClient, error) {
		dials++
		return client, nil
	}
	n.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return n, &dials
}

func spooledArtifact(t *testing.T) *certificate.Artifact {
	art := &certificate.Artifact{Data: []byte("%PDF-1.3 test"), Name: "certificate_Jane_Doe.pdf"}
	require.NoError(t, art.Spool(t.TempDir()))
	return art
}

func assertRemoved(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "spool file should be removed")
}

func TestSMTPNotifySuccess(t *testing.T) {
	client := &fakeSMTPClient{}
	n, dials := newTestNotifier(client)
	art := spooledArtifact(t)
	path := art.Path

	err := n.Notify(context.Background(), "Jane Doe <jane@example.org>", art)
	require.NoError(t, err)

	assert.Equal(t, 1, *dials)
	assert.Equal(t, []string{"starttls", "auth", "mail", "rcpt", "data", "quit"}, client.calls)
	assert.Equal(t, "smtp.example.org", client.tlsName)
	assert.Equal(t, "naturelife@example.org", client.from)
	assert.Equal(t, "jane@example.org", client.rcpt)
	assert.Equal(t, 1, client.closed)
	assertRemoved(t, path)

	mr, err := mail.CreateReader(bytes.NewReader(client.data.Bytes()))
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, Subject, subject)

	var attachment []byte
	var filename string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			filename, _ = h.Filename()
			attachment, err = io.ReadAll(p.Body)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, "certificate_Jane_Doe.pdf", filename)
	assert.Equal(t, []byte("%PDF-1.3 test"), attachment)
}

func TestSMTPNotifyImplicitTLSSkipsStartTLS(t *testing.T) {
	client := &fakeSMTPClient{}
	n, _ := newTestNotifier(client)
	n.cfg.ImplicitTLS = true

	require.NoError(t, n.Notify(context.Background(), "jane@example.org", spooledArtifact(t)))
	assert.NotContains(t, client.calls, "starttls")
}

func TestSMTPNotifyInvalidRecipientDoesNotDial(t *testing.T) {
	client := &fakeSMTPClient{}
	n, dials := newTestNotifier(client)
	art := spooledArtifact(t)
	path := art.Path

	err := n.Notify(context.Background(), "not an address", art)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Zero(t, *dials)
	assertRemoved(t, path)
}

func TestSMTPNotifyFailuresCloseAndCleanUp(t *testing.T) {
	for _, step := range []string{"starttls", "auth", "mail", "rcpt", "data", "data-close"} {
		t.Run(step, func(t *testing.T) {
			client := &fakeSMTPClient{failOn: step}
			n, _ := newTestNotifier(client)
			art := spooledArtifact(t)
			path := art.Path

			err := n.Notify(context.Background(), "jane@example.org", art)
			assert.ErrorIs(t, err, ErrDelivery)
			assert.Equal(t, 1, client.closed)
			assert.NotContains(t, client.calls, "quit")
			assertRemoved(t, path)
		})
	}
}

func TestSMTPNotifyDialFailure(t *testing.T) {
	n := NewSMTPNotifier(testNotifierConfig())
	n.dial = func(ctx context.Context, cfg config.NotifierConfig) (smtpClient, error) {
		return nil, errors.New("connection refused")
	}
	art := spooledArtifact(t)
	path := art.Path

	err := n.Notify(context.Background(), "jane@example.org", art)
	assert.ErrorIs(t, err, ErrDelivery)
	assertRemoved(t, path)
}

func TestGmailNotifyRetriesOnlyRateLimits(t *testing.T) {
	var sent []*gmail.Message
	var waits []time.Duration
	failures := []error{&googleapi.Error{Code: 429, Message: "slow down"}}

	n := &GmailNotifier{
		send: func(ctx context.Context, msg *gmail.Message) error {
			sent = append(sent, msg)
			if len(failures) > 0 {
				err := failures[0]
				failures = failures[1:]
				return err
			}
			return nil
		},
		from:  "naturelife@gmail.com",
		body:  DefaultBody,
		now:   time.Now,
		sleep: func(ctx context.Context, d time.Duration) error { waits = append(waits, d); return nil },
	}

	art := spooledArtifact(t)
	path := art.Path
	require.NoError(t, n.Notify(context.Background(), "jane@example.org", art))
	assert.Len(t, sent, 2)
	assert.Equal(t, []time.Duration{time.Second}, waits)
	assert.NotEmpty(t, sent[0].Raw)
	assertRemoved(t, path)

	sent = nil
	failures = []error{errors.New("invalid grant")}
	err := n.Notify(context.Background(), "jane@example.org", spooledArtifact(t))
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Len(t, sent, 1)
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"too many requests", &googleapi.Error{Code: 429}, true},
		{"user rate limit", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, true},
		{"quota", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}}, true},
		{"forbidden", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, false},
		{"wording mentions rate", &googleapi.Error{Code: 400, Message: "failed to generate a separate accurate message"}, false},
		{"plain error", errors.New("rate limit exceeded"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRateLimited(tt.err))
		})
	}
}

func TestNewGmailNotifierRequiresSender(t *testing.T) {
	_, err := NewGmailNotifier(context.Background(), config.GmailConfig{ClientID: "id", ClientSecret: "secret", RefreshToken: "token"}, "")
	assert.Error(t, err)
}

func TestDialSMTPTimesOutOnSilentRelay(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	var conns []net.Conn
	accepted := make(chan struct{})
	go func() {
		defer close(accepted)
		c, err := l.Accept()
		if err == nil {
			conns = append(conns, c)
		}
	}()

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := net.LookupPort("tcp", port)
	require.NoError(t, err)

	cfg := config.NotifierConfig{Host: host, Port: p, DialTimeout: time.Second, SendTimeout: 200 * time.Millisecond}

	start := time.Now()
	_, err = dialSMTP(context.Background(), cfg)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var netErr net.Error
	require.True(t, errors.As(err, &netErr), "expected a network timeout, got %v", err)
	assert.True(t, netErr.Timeout())

	<-accepted
	for _, c := range conns {
		c.Close()
	}
}
