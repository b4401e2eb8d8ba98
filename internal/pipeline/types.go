package pipeline

import (
	"context"
	"fmt"
	"strings"

	"naturelife-cert/internal/certificate"
	"naturelife-cert/internal/mailbox"
	"naturelife-cert/internal/models"
)

// Stage is the point a message reached in the pipeline
type Stage string

const (
	StageFound     Stage = "found"
	StageFetched   Stage = "fetched"
	StageDecoded   Stage = "decoded"
	StageExtracted Stage = "extracted"
	StageCertified Stage = "certified"
	StageNotified  Stage = "notified"
	StageDone      Stage = "done"
)

// Connector opens the mailbox session for one batch
type Connector interface {
	Connect(ctx context.Context) (*mailbox.Session, error)
}

// Decoder turns a raw message into text
type Decoder interface {
	Decode(uid uint32, raw []byte) (*models.DecodedMessage, error)
}

// Generator renders a certificate for a donor
type Generator interface {
	Generate(rec *models.DonorRecord) (*certificate.Artifact, error)
}

// Ledger persists processing state. It is optional.
type Ledger interface {
	IsMessageProcessed(messageID string) (bool, error)
	MarkMessageProcessed(messageID string) error
	RecordDonation(messageID string, rec *models.DonorRecord) error
	LogDispatch(entry *models.DispatchLog) error
}

// Skip describes a message that did not complete. Stage is the last stage
// the message reached before failing.
type Skip struct {
	UID       uint32 `json:"uid"`
	MessageID string `json:"message_id,omitempty"`
	Stage     Stage  `json:"stage"`
	Reason    string `json:"reason"`
}

func (s Skip) String() string {
	return fmt.Sprintf("uid %d after %s: %s", s.UID, s.Stage, s.Reason)
}

// Summary is the outcome of one batch
type Summary struct {
	Total       int    `json:"total"`
	Succeeded   int    `json:"succeeded"`
	Skipped     []Skip `json:"skipped"`
	Interrupted bool   `json:"interrupted,omitempty"`
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d message(s) found, %d certificate(s) sent, %d skipped", s.Total, s.Succeeded, len(s.Skipped))
	if s.Interrupted {
		b.WriteString(" (interrupted)")
	}
	for _, skip := range s.Skipped {
		b.WriteString("\n  - ")
		b.WriteString(skip.String())
	}
	return b.String()
}
