package mailbox

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

// Criteria selects the messages a batch works on
type Criteria struct {
	SubjectContains string
	UnseenOnly      bool
}

// Session is one authenticated connection with a selected folder. It is not
// safe for concurrent use.
type Session struct {
	client *client.Client
	folder string
}

// Search returns matching UIDs in ascending order
func (s *Session) Search(ctx context.Context, crit Criteria) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	if crit.SubjectContains != "" {
		criteria.Header.Add("Subject", crit.SubjectContains)
	}
	if crit.UnseenOnly {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", ErrConnection, err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	logrus.WithFields(logrus.Fields{
		"folder":  s.folder,
		"subject": crit.SubjectContains,
		"unseen":  crit.UnseenOnly,
		"matches": len(uids),
	}).Debug("Mailbox search completed")
	return uids, nil
}

// Fetch returns the raw RFC 822 message. The body is peeked so the message
// keeps its unseen state.
func (s *Session) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		if msg == nil || raw != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, readErr = io.ReadAll(body)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: fetch of uid %d failed: %v", ErrConnection, uid, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read message %d: %w", uid, readErr)
	}
	if raw == nil {
		return nil, fmt.Errorf("message %d not found in %s", uid, s.folder)
	}
	return raw, nil
}

// MarkSeen sets the \Seen flag on a message
func (s *Session) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("failed to mark message %d as seen: %w", uid, err)
	}
	return nil
}

// Close logs out
func (s *Session) Close() error {
	if err := s.client.Logout(); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}
