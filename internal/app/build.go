package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/certificate"
	"naturelife-cert/internal/config"
	"naturelife-cert/internal/decoder"
	"naturelife-cert/internal/extractor"
	"naturelife-cert/internal/mailbox"
	"naturelife-cert/internal/metrics"
	"naturelife-cert/internal/notifier"
	"naturelife-cert/internal/pipeline"
)

// ConfigureLogging sets the global logrus level and formatter
func ConfigureLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)

	switch format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// NewGenerator builds the certificate generator from configuration
func NewGenerator(cfg *config.Config) *certificate.Generator {
	return certificate.NewGenerator(certificate.Options{
		Title:        cfg.Certificate.Title,
		Organization: cfg.Certificate.Organization,
	})
}

// NewNotifier builds the configured notifier transport
func NewNotifier(ctx context.Context, cfg *config.Config) (notifier.Notifier, error) {
	switch cfg.Notifier.Transport {
	case "", "smtp":
		return notifier.NewSMTPNotifier(cfg.Notifier), nil
	case "gmail":
		n, err := notifier.NewGmailNotifier(ctx, cfg.Gmail, cfg.Notifier.Body)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported notifier transport: %s", cfg.Notifier.Transport)
	}
}

// NewPipeline wires the inbox pipeline. ledger and m may be nil.
func NewPipeline(ctx context.Context, cfg *config.Config, ledger pipeline.Ledger, m *metrics.Metrics) (*pipeline.Pipeline, error) {
	conn, err := mailbox.NewConnector(cfg.Mailbox)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailbox connector: %w", err)
	}

	n, err := NewNotifier(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	ext := extractor.NewKeyValueExtractor(extractor.Options{
		DefaultCountry:   cfg.Certificate.DefaultCountry,
		DefaultCurrency:  cfg.Certificate.DefaultCurrency,
		FallbackToSender: cfg.Extractor.FallbackToSender,
	})

	opts := pipeline.Options{
		Criteria: mailbox.Criteria{
			SubjectContains: cfg.Mailbox.SubjectFilter,
			UnseenOnly:      cfg.Mailbox.UnseenOnly,
		},
		MarkSeen: cfg.Mailbox.MarkSeen,
		SpoolDir: cfg.Certificate.SpoolDir,
	}
	if !opts.Criteria.UnseenOnly {
		logrus.Warn("Unseen-only filter is disabled, every matching message will be answered again")
	}

	return pipeline.New(conn, decoder.New(nil), ext, NewGenerator(cfg), n, ledger, m, opts), nil
}
