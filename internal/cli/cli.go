// Package cli implements outlook-check, a one-shot run of the inbox pipeline.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"naturelife-cert/internal/app"
	"naturelife-cert/internal/config"
	"naturelife-cert/internal/db"
	"naturelife-cert/internal/pipeline"
	"naturelife-cert/internal/repository"
)

// Exit codes
const (
	ExitFatal  = 1
	ExitConfig = 2
)

// Options are the command line parameters
type Options struct {
	ConfigPath string
	Username   string
	Password   string
	LogLevel   string
	LogFormat  string
	All        bool
	Record     bool
}

// Flags returns the command line flags bound to o
func (o *Options) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the configuration file",
			EnvVars:     []string{"NATURELIFE_CONFIG"},
			Destination: &o.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "username",
			Aliases:     []string{"n"},
			Usage:       "Mailbox and relay username",
			EnvVars:     []string{"NATURELIFE_USERNAME"},
			Destination: &o.Username,
		},
		&cli.StringFlag{
			Name:        "password",
			Aliases:     []string{"p"},
			Usage:       "Mailbox and relay password",
			EnvVars:     []string{"NATURELIFE_PASSWORD"},
			Destination: &o.Password,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Logging level",
			EnvVars:     []string{"LOG_LEVEL"},
			Value:       "info",
			Destination: &o.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Logging format (text, json)",
			EnvVars:     []string{"LOG_FORMAT"},
			Value:       "text",
			Destination: &o.LogFormat,
		},
		&cli.BoolFlag{
			Name:        "all",
			Usage:       "Also answer messages that were already read",
			Destination: &o.All,
		},
		&cli.BoolFlag{
			Name:        "record",
			Usage:       "Record donations and dispatches in the configured database",
			Destination: &o.Record,
		},
	}
}

// NewApp builds the outlook-check command
func NewApp() *cli.App {
	opts := &Options{}
	return &cli.App{
		Name:  "outlook-check",
		Usage: "answer donation requests in the mailbox with a certificate",
		Description: `outlook-check scans the mailbox once for donation requests, renders a
certificate for every donor found and mails it back.
`,
		Flags:  opts.Flags(),
		Action: func(c *cli.Context) error { return run(c, opts) },
	}
}

// Main runs the command with the process arguments
func Main() {
	if err := NewApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context, opts *Options) error {
	if err := app.ConfigureLogging(opts.LogLevel, opts.LogFormat); err != nil {
		return cli.Exit(err.Error(), ExitConfig)
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return cli.Exit(err.Error(), ExitConfig)
	}
	opts.apply(cfg)

	if err := cfg.ValidateMailbox(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), ExitConfig)
	}

	var ledger pipeline.Ledger
	if opts.Record {
		dbConn, err := db.Init(cfg.Database)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open database: %v", err), ExitConfig)
		}
		if sqlDB, err := dbConn.DB(); err == nil {
			defer sqlDB.Close()
		}
		ledger = repository.New(dbConn)
	}

	// The notifier outlives the interrupt so an in-flight send can finish.
	p, err := app.NewPipeline(c.Context, cfg, ledger, nil)
	if err != nil {
		return cli.Exit(err.Error(), ExitConfig)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"mailbox":     cfg.Mailbox.Address(),
		"username":    cfg.Mailbox.LoginUsername(),
		"folder":      cfg.Mailbox.Folder,
		"subject":     cfg.Mailbox.SubjectFilter,
		"unseen_only": cfg.Mailbox.UnseenOnly,
		"transport":   cfg.Notifier.Transport,
		"record":      opts.Record,
	}).Info("Starting inbox check")

	summary, err := p.Run(ctx)
	if err != nil {
		if pipeline.FatalError(err) {
			return cli.Exit(fmt.Sprintf("mailbox unavailable: %v", err), ExitFatal)
		}
		return cli.Exit(err.Error(), ExitFatal)
	}

	fmt.Fprintln(c.App.Writer, summary.String())
	return nil
}

// apply overrides configuration with command line values. The credentials
// are shared by the mailbox and the SMTP relay.
func (o *Options) apply(cfg *config.Config) {
	if o.Username != "" {
		cfg.Mailbox.Username = o.Username
		cfg.Notifier.Username = o.Username
	}
	if o.Password != "" {
		cfg.Mailbox.Password = o.Password
		cfg.Notifier.Password = o.Password
	}
	if o.All {
		cfg.Mailbox.UnseenOnly = false
	}
}
