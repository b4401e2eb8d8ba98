// Package notifier delivers certificates to donors.
package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/certificate"
)

// Subject of every thank-you mail
const Subject = "Thank you for your donation"

// DefaultBody is used when no body text is configured
const DefaultBody = "Dear donor,\r\n\r\nthank you for your donation. Your certificate is attached.\r\n"

// ErrDelivery is returned when a certificate could not be handed to the
// mail system. Delivery is never retried automatically.
var ErrDelivery = errors.New("certificate delivery failed")

// Notifier sends a certificate to a donor. Implementations remove the
// artifact's spool file on every path.
type Notifier interface {
	Notify(ctx context.Context, to string, art *certificate.Artifact) error
}

// Compose builds the thank-you message with the certificate attached
func Compose(from, to, body string, art *certificate.Artifact, now time.Time) ([]byte, error) {
	data, err := artifactData(art)
	if err != nil {
		return nil, err
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(Subject)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("failed to write text part: %w", err)
	}
	w.Close()
	tw.Close()

	var ah mail.AttachmentHeader
	ah.SetContentType("application/pdf", nil)
	ah.SetFilename(art.Name)
	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}
	if _, err := aw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}
	aw.Close()

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

func artifactData(art *certificate.Artifact) ([]byte, error) {
	if art == nil {
		return nil, fmt.Errorf("%w: no certificate", ErrDelivery)
	}
	if len(art.Data) > 0 || art.Path == "" {
		return art.Data, nil
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read certificate: %v", ErrDelivery, err)
	}
	return data, nil
}

func validateRecipient(to string) (string, error) {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("%w: invalid recipient %q: %v", ErrDelivery, to, err)
	}
	return addr.Address, nil
}

func cleanup(art *certificate.Artifact) {
	if err := art.Remove(); err != nil {
		logrus.WithError(err).Warn("Failed to remove certificate spool file")
	}
}
