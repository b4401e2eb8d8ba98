// Package pipeline runs inbox batches: every matching donation request is
// decoded, turned into a donor record, certified and answered.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/decoder"
	"naturelife-cert/internal/extractor"
	"naturelife-cert/internal/mailbox"
	"naturelife-cert/internal/metrics"
	"naturelife-cert/internal/models"
	"naturelife-cert/internal/notifier"
)

// Options control a batch
type Options struct {
	Criteria mailbox.Criteria
	MarkSeen bool
	SpoolDir string
}

// Pipeline processes one batch per Run. Runs must not overlap.
type Pipeline struct {
	connector Connector
	decoder   Decoder
	extractor extractor.Extractor
	generator Generator
	notifier  notifier.Notifier
	ledger    Ledger
	metrics   *metrics.Metrics
	opts      Options
}

// New creates a pipeline. dec, ledger and m may be nil.
func New(connector Connector, dec Decoder, ext extractor.Extractor, gen Generator,
	n notifier.Notifier, ledger Ledger, m *metrics.Metrics, opts Options) *Pipeline {
	if dec == nil {
		dec = decoder.New(nil)
	}
	return &Pipeline{
		connector: connector,
		decoder:   dec,
		extractor: ext,
		generator: gen,
		notifier:  n,
		ledger:    ledger,
		metrics:   m,
		opts:      opts,
	}
}

// Run processes all matching messages once. Per-message failures are
// recorded in the summary; authentication and connection failures abort the
// batch and are returned. Cancelling ctx stops the batch between messages.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.BatchRuns.Inc()
		defer func() { p.metrics.ProcessingTime.Observe(time.Since(start).Seconds()) }()
	}

	session, err := p.connector.Connect(ctx)
	if err != nil {
		p.batchFailed(err)
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close mailbox session")
		}
	}()

	uids, err := session.Search(ctx, p.opts.Criteria)
	if err != nil {
		p.batchFailed(err)
		return nil, err
	}

	summary := &Summary{Total: len(uids)}
	if p.metrics != nil {
		p.metrics.MessagesFound.Add(float64(len(uids)))
	}
	if len(uids) == 0 {
		logrus.Info("No new messages")
		return summary, nil
	}
	logrus.Infof("Found %d message(s) to process", len(uids))

	// In-flight work is never interrupted, only the loop checks ctx.
	work := context.WithoutCancel(ctx)

	for _, uid := range uids {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logrus.Warn("Batch interrupted, remaining messages are left for the next run")
			break
		}

		if err := p.process(work, session, uid, summary); err != nil {
			p.batchFailed(err)
			return summary, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"skipped":   len(summary.Skipped),
		"duration":  time.Since(start),
	}).Info("Batch completed")
	return summary, nil
}

// process moves one message through the stages. Only errors that end the
// batch are returned.
func (p *Pipeline) process(ctx context.Context, session *mailbox.Session, uid uint32, summary *Summary) error {
	log := logrus.WithField("uid", uid)

	raw, err := session.Fetch(ctx, uid)
	if err != nil {
		if errors.Is(err, mailbox.ErrConnection) {
			return err
		}
		p.skip(ctx, session, summary, Skip{UID: uid, Stage: StageFound, Reason: err.Error()}, "", false)
		return nil
	}
	log.WithField("stage", StageFetched).Debug("Message fetched")

	msg, err := p.decoder.Decode(uid, raw)
	if err != nil {
		p.skip(ctx, session, summary, Skip{UID: uid, Stage: StageFetched, Reason: err.Error()}, "", true)
		return nil
	}
	log = log.WithField("message_id", msg.MessageID)
	log.WithField("stage", StageDecoded).Debug("Message decoded")

	if p.ledger != nil && msg.MessageID != "" {
		processed, err := p.ledger.IsMessageProcessed(msg.MessageID)
		if err != nil {
			log.WithError(err).Warn("Failed to check processed messages")
		} else if processed {
			skip := Skip{UID: uid, MessageID: msg.MessageID, Stage: StageDecoded, Reason: "already processed"}
			p.skip(ctx, session, summary, skip, "", true)
			return nil
		}
	}

	rec, err := p.extractor.Extract(msg)
	if err != nil {
		skip := Skip{UID: uid, MessageID: msg.MessageID, Stage: StageDecoded, Reason: err.Error()}
		p.skip(ctx, session, summary, skip, "", true)
		return nil
	}
	log.WithField("stage", StageExtracted).Debug("Donor information extracted")

	art, err := p.generator.Generate(rec)
	if err == nil {
		err = art.Spool(p.opts.SpoolDir)
	}
	if err != nil {
		skip := Skip{UID: uid, MessageID: msg.MessageID, Stage: StageExtracted, Reason: err.Error()}
		p.skip(ctx, session, summary, skip, rec.Email, false)
		return nil
	}
	log.WithField("stage", StageCertified).Debug("Certificate generated")

	if err := p.notifier.Notify(ctx, rec.Email, art); err != nil {
		if p.metrics != nil {
			p.metrics.DeliveryFailures.Inc()
		}
		skip := Skip{UID: uid, MessageID: msg.MessageID, Stage: StageCertified, Reason: err.Error()}
		p.skip(ctx, session, summary, skip, rec.Email, false)
		return nil
	}
	log.WithField("stage", StageNotified).Debug("Certificate delivered")

	p.complete(ctx, session, msg, rec)
	summary.Succeeded++
	if p.metrics != nil {
		p.metrics.CertificatesSent.Inc()
	}
	log.WithFields(logrus.Fields{
		"stage": StageDone,
		"to":    rec.Email,
	}).Info("Donation request processed")
	return nil
}

func (p *Pipeline) complete(ctx context.Context, session *mailbox.Session, msg *models.DecodedMessage, rec *models.DonorRecord) {
	if p.ledger != nil {
		if msg.MessageID != "" {
			if err := p.ledger.MarkMessageProcessed(msg.MessageID); err != nil {
				logrus.WithError(err).Warn("Failed to mark message as processed")
			}
		}
		if err := p.ledger.RecordDonation(msg.MessageID, rec); err != nil {
			logrus.WithError(err).Warn("Failed to record donation")
		}
		p.logDispatch(&models.DispatchLog{
			MessageID: msg.MessageID,
			UID:       msg.UID,
			Recipient: rec.Email,
			Status:    models.DispatchSuccess,
			Stage:     string(StageDone),
		})
	}
	p.markSeen(ctx, session, msg.UID)
}

// skip records a failed message. Messages that can never succeed are marked
// seen; delivery problems stay unseen so the next run retries them.
func (p *Pipeline) skip(ctx context.Context, session *mailbox.Session, summary *Summary, skip Skip, recipient string, seen bool) {
	summary.Skipped = append(summary.Skipped, skip)

	logrus.WithFields(logrus.Fields{
		"uid":        skip.UID,
		"message_id": skip.MessageID,
		"stage":      skip.Stage,
	}).Warnf("Message skipped: %s", skip.Reason)

	if p.metrics != nil {
		p.metrics.MessagesSkipped.WithLabelValues(string(skip.Stage)).Inc()
	}

	status := models.DispatchSkipped
	if !seen {
		status = models.DispatchFailure
	}
	p.logDispatch(&models.DispatchLog{
		MessageID: skip.MessageID,
		UID:       skip.UID,
		Recipient: recipient,
		Status:    status,
		Stage:     string(skip.Stage),
		ErrorMsg:  skip.Reason,
	})

	if seen {
		p.markSeen(ctx, session, skip.UID)
	}
}

func (p *Pipeline) markSeen(ctx context.Context, session *mailbox.Session, uid uint32) {
	if !p.opts.MarkSeen {
		return
	}
	if err := session.MarkSeen(ctx, uid); err != nil {
		logrus.WithError(err).WithField("uid", uid).Warn("Failed to mark message as seen")
	}
}

func (p *Pipeline) logDispatch(entry *models.DispatchLog) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.LogDispatch(entry); err != nil {
		logrus.WithError(err).Warn("Failed to write dispatch log")
	}
}

func (p *Pipeline) batchFailed(err error) {
	reason := "other"
	switch {
	case errors.Is(err, mailbox.ErrAuthentication):
		reason = "authentication"
	case errors.Is(err, mailbox.ErrConnection):
		reason = "connection"
	}
	if p.metrics != nil {
		p.metrics.BatchFailures.WithLabelValues(reason).Inc()
	}
	logrus.WithError(err).WithField("reason", reason).Error("Batch aborted")
}

// FatalError reports whether err ended a batch rather than a single message
func FatalError(err error) bool {
	return errors.Is(err, mailbox.ErrAuthentication) || errors.Is(err, mailbox.ErrConnection)
}
