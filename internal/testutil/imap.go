package testutil

import (
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/require"
)

// IMAP credentials accepted by the in-memory server
const (
	IMAPUsername = "username"
	IMAPPassword = "password"
)

// IMAPServer is an in-memory IMAP server with an empty INBOX
type IMAPServer struct {
	Addr  string
	Inbox *memory.Mailbox

	server *server.Server
	nextID uint32
}

// NewIMAPServer starts a plaintext IMAP server on a loopback port
func NewIMAPServer(t *testing.T) *IMAPServer {
	t.Helper()

	be := memory.New()
	user, err := be.Login(nil, IMAPUsername, IMAPPassword)
	require.NoError(t, err)
	mb, err := user.GetMailbox("INBOX")
	require.NoError(t, err)

	inbox := mb.(*memory.Mailbox)
	inbox.Messages = nil

	s := server.New(be)
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)

	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })

	return &IMAPServer{Addr: l.Addr().String(), Inbox: inbox, server: s}
}

// AddMessage appends a raw message to INBOX and returns its UID
func (s *IMAPServer) AddMessage(raw string, flags ...string) uint32 {
	s.nextID++
	if flags == nil {
		flags = []string{}
	}
	s.Inbox.Messages = append(s.Inbox.Messages, &memory.Message{
		Uid:   s.nextID,
		Date:  time.Now(),
		Size:  uint32(len(raw)),
		Flags: flags,
		Body:  []byte(raw),
	})
	return s.nextID
}

// IsSeen reports whether the message carries the \Seen flag
func (s *IMAPServer) IsSeen(uid uint32) bool {
	for _, msg := range s.Inbox.Messages {
		if msg.Uid != uid {
			continue
		}
		for _, flag := range msg.Flags {
			if flag == imap.SeenFlag {
				return true
			}
		}
	}
	return false
}
