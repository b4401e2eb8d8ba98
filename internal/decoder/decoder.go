// Package decoder turns raw RFC 822 messages into plain text.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/models"
)

// ErrDecode is returned when a message header block cannot be parsed
var ErrDecode = errors.New("message could not be decoded")

// Decoder extracts sender, subject and body text from raw messages. Body
// decoding is lossy and never fails: bad charsets and invalid UTF-8 are
// replaced with U+FFFD and logged.
type Decoder struct {
	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Decoder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Decoder{log: log}
}

func (d *Decoder) Decode(uid uint32, raw []byte) (*models.DecodedMessage, error) {
	log := d.log.WithField("uid", uid)

	e, err := message.Read(bytes.NewReader(raw))
	if e == nil {
		return nil, fmt.Errorf("%w: uid %d: %v", ErrDecode, uid, err)
	}
	if err != nil {
		log.WithError(err).Warn("Message decoded with unknown charset or encoding")
	}

	h := mail.Header{Header: e.Header}
	msg := &models.DecodedMessage{
		UID:       uid,
		MessageID: messageID(h),
		Sender:    sender(h),
		Subject:   subject(h, log),
	}

	var body strings.Builder
	d.walk(e, &body, log)
	msg.Body = body.String()

	log.WithFields(logrus.Fields{
		"message_id": msg.MessageID,
		"subject":    msg.Subject,
	}).Debug("Message decoded")

	return msg, nil
}

// walk appends the text of every text leaf in part order
func (d *Decoder) walk(e *message.Entity, out *strings.Builder, log logrus.FieldLogger) {
	if mr := e.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil && p == nil {
				log.WithError(err).Warn("Failed to read message part")
				return
			}
			if err != nil {
				log.WithError(err).Warn("Message part decoded with unknown charset or encoding")
			}
			d.walk(p, out, log)
		}
	}

	mediaType, _, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}
	if !strings.HasPrefix(mediaType, "text/") {
		return
	}
	if disp, _, err := e.Header.ContentDisposition(); err == nil && disp == "attachment" {
		return
	}

	data, err := io.ReadAll(e.Body)
	if err != nil {
		log.WithError(err).Warn("Failed to read message part body, keeping partial text")
	}

	text := string(data)
	if !utf8.ValidString(text) {
		log.WithField("content_type", mediaType).Warn("Invalid UTF-8 in message text")
		text = strings.ToValidUTF8(text, "�")
	}

	if mediaType != "text/plain" {
		text = StripMarkup(text)
	}
	out.WriteString(text)
}

func subject(h mail.Header, log logrus.FieldLogger) string {
	s, err := h.Subject()
	if err != nil {
		log.WithError(err).Warn("Failed to decode subject")
		return h.Get("Subject")
	}
	return s
}

func sender(h mail.Header) string {
	addrs, err := h.AddressList("From")
	if err == nil && len(addrs) > 0 {
		return addrs[0].Address
	}
	if s, err := h.Text("From"); err == nil {
		return s
	}
	return h.Get("From")
}

func messageID(h mail.Header) string {
	if id, err := h.MessageID(); err == nil && id != "" {
		return id
	}
	return strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
}
