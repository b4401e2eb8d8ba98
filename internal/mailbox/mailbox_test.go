package mailbox

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naturelife-cert/internal/config"
	"naturelife-cert/internal/testutil"
)

func testConfig(t *testing.T, addr string) config.MailboxConfig {
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return config.MailboxConfig{
		Host:         host,
		Port:         p,
		Username:     testutil.IMAPUsername,
		Password:     testutil.IMAPPassword,
		AuthMethod:   "login",
		Folder:       "INBOX",
		RetryBackoff: time.Millisecond,
	}
}

func connect(t *testing.T, cfg config.MailboxConfig) *Session {
	conn, err := NewConnector(cfg)
	require.NoError(t, err)
	session, err := conn.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestSearchFiltersSubjectAndUnseen(t *testing.T) {
	srv := testutil.NewIMAPServer(t)
	welcome := srv.AddMessage(testutil.DonationRequest("a@test", "Welcome to Nature Life", "Name: Jane Doe"))
	srv.AddMessage(testutil.DonationRequest("b@test", "Newsletter", "nothing"))
	seen := srv.AddMessage(testutil.DonationRequest("c@test", "Welcome back", "Name: John Doe"), `\Seen`)

	session := connect(t, testConfig(t, srv.Addr))
	ctx := context.Background()

	uids, err := session.Search(ctx, Criteria{SubjectContains: "Welcome", UnseenOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []uint32{welcome}, uids)

	uids, err = session.Search(ctx, Criteria{SubjectContains: "Welcome"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{welcome, seen}, uids)
}

func TestFetchDoesNotMarkSeen(t *testing.T) {
	srv := testutil.NewIMAPServer(t)
	uid := srv.AddMessage(testutil.DonationRequest("a@test", "Welcome", "Name: Jane Doe"))

	session := connect(t, testConfig(t, srv.Addr))
	ctx := context.Background()

	raw, err := session.Fetch(ctx, uid)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Name: Jane Doe")
	assert.False(t, srv.IsSeen(uid))

	require.NoError(t, session.MarkSeen(ctx, uid))
	assert.True(t, srv.IsSeen(uid))
}

func TestFetchMissingMessage(t *testing.T) {
	srv := testutil.NewIMAPServer(t)
	session := connect(t, testConfig(t, srv.Addr))

	_, err := session.Fetch(context.Background(), 99)
	assert.Error(t, err)
}

func TestPlainAuthentication(t *testing.T) {
	srv := testutil.NewIMAPServer(t)
	cfg := testConfig(t, srv.Addr)
	cfg.AuthMethod = "plain"

	session := connect(t, cfg)
	uids, err := session.Search(context.Background(), Criteria{})
	require.NoError(t, err)
	assert.Empty(t, uids)
}

func TestBadCredentialsAreNotRetried(t *testing.T) {
	srv := testutil.NewIMAPServer(t)
	cfg := testConfig(t, srv.Addr)
	cfg.Password = "wrong"
	cfg.MaxRetries = 5

	conn, err := NewConnector(cfg)
	require.NoError(t, err)

	sleeps := 0
	conn.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}

	_, err = conn.Connect(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Zero(t, sleeps)
}

func TestConnectionFailureRetriesWithBackoff(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := testConfig(t, addr)
	cfg.MaxRetries = 3
	cfg.RetryBackoff = 10 * time.Millisecond

	conn, err := NewConnector(cfg)
	require.NoError(t, err)

	var waits []time.Duration
	conn.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err = conn.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, waits)
}

func TestConnectHonoursCancelledContext(t *testing.T) {
	srv := testutil.NewIMAPServer(t)
	conn, err := NewConnector(testConfig(t, srv.Addr))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = conn.Connect(ctx)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestUnsupportedAuthMethod(t *testing.T) {
	_, err := NewConnector(config.MailboxConfig{AuthMethod: "xoauth2"})
	assert.Error(t, err)
}
