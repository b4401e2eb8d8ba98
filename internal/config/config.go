package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Mailbox     MailboxConfig     `mapstructure:"mailbox"`
	Notifier    NotifierConfig    `mapstructure:"notifier"`
	Gmail       GmailConfig       `mapstructure:"gmail"`
	Certificate CertificateConfig `mapstructure:"certificate"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Path     string `mapstructure:"path"`
}

// MailboxConfig holds the IMAP inbox the donation requests arrive in
type MailboxConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	TLS           bool          `mapstructure:"tls"`
	TLSSkipVerify bool          `mapstructure:"tls_skip_verify"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	LoginDomain   string        `mapstructure:"login_domain"`
	AuthMethod    string        `mapstructure:"auth_method"`
	Folder        string        `mapstructure:"folder"`
	SubjectFilter string        `mapstructure:"subject_filter"`
	UnseenOnly    bool          `mapstructure:"unseen_only"`
	MarkSeen      bool          `mapstructure:"mark_seen"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	Debug         bool          `mapstructure:"debug"`
}

// NotifierConfig holds outbound mail configuration
type NotifierConfig struct {
	Transport   string        `mapstructure:"transport"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ImplicitTLS bool          `mapstructure:"implicit_tls"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	Body        string        `mapstructure:"body"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// GmailConfig holds Gmail API configuration for the gmail notifier transport
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// CertificateConfig holds certificate rendering configuration
type CertificateConfig struct {
	Title           string `mapstructure:"title"`
	Organization    string `mapstructure:"organization"`
	SpoolDir        string `mapstructure:"spool_dir"`
	DefaultCountry  string `mapstructure:"default_country"`
	DefaultCurrency string `mapstructure:"default_currency"`
}

// ExtractorConfig controls how donor records are recovered from mail text
type ExtractorConfig struct {
	FallbackToSender bool `mapstructure:"fallback_to_sender"`
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from environment variables and config file.
// An empty path searches ./config.yaml and ./config/config.yaml.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.path", "naturelifecert.db")

	v.SetDefault("mailbox.host", "outlook.office365.com")
	v.SetDefault("mailbox.port", 993)
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("mailbox.login_domain", "outlook.com")
	v.SetDefault("mailbox.auth_method", "login")
	v.SetDefault("mailbox.folder", "INBOX")
	v.SetDefault("mailbox.subject_filter", "Welcome")
	v.SetDefault("mailbox.unseen_only", true)
	v.SetDefault("mailbox.mark_seen", true)
	v.SetDefault("mailbox.max_retries", 3)
	v.SetDefault("mailbox.retry_backoff", "2s")

	v.SetDefault("notifier.transport", "smtp")
	v.SetDefault("notifier.host", "smtp.office365.com")
	v.SetDefault("notifier.port", 587)
	v.SetDefault("notifier.implicit_tls", false)
	v.SetDefault("notifier.dial_timeout", "30s")
	v.SetDefault("notifier.send_timeout", "2m")
	v.SetDefault("notifier.body", "Dear donor,\r\n\r\nthank you for your donation. Your certificate is attached.\r\n")

	v.SetDefault("certificate.title", "Certificate of Donation")
	v.SetDefault("certificate.organization", "Nature Life")
	v.SetDefault("certificate.default_country", "-")
	v.SetDefault("certificate.default_currency", "EUR")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_minutes", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.path", "DB_PATH")

	// Credentials are shared between the inbox and the relay unless set separately
	v.BindEnv("mailbox.username", "NATURELIFE_IMAP_USERNAME", "NATURELIFE_USERNAME")
	v.BindEnv("mailbox.password", "NATURELIFE_IMAP_PASSWORD", "NATURELIFE_PASSWORD")
	v.BindEnv("mailbox.host", "NATURELIFE_IMAP_HOST")
	v.BindEnv("mailbox.port", "NATURELIFE_IMAP_PORT")
	v.BindEnv("mailbox.subject_filter", "NATURELIFE_SUBJECT_FILTER")
	v.BindEnv("mailbox.unseen_only", "NATURELIFE_UNSEEN_ONLY")

	v.BindEnv("notifier.transport", "NATURELIFE_NOTIFIER_TRANSPORT")
	v.BindEnv("notifier.username", "NATURELIFE_SMTP_USERNAME", "NATURELIFE_USERNAME")
	v.BindEnv("notifier.password", "NATURELIFE_SMTP_PASSWORD", "NATURELIFE_PASSWORD")
	v.BindEnv("notifier.host", "NATURELIFE_SMTP_HOST")
	v.BindEnv("notifier.port", "NATURELIFE_SMTP_PORT")

	// Gmail
	v.BindEnv("gmail.client_id", "GMAIL_CLIENT_ID")
	v.BindEnv("gmail.client_secret", "GMAIL_CLIENT_SECRET")
	v.BindEnv("gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	v.BindEnv("gmail.user_email", "GMAIL_USER_EMAIL")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")

	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// LoginUsername returns the IMAP login name, qualifying bare account names
// with the configured login domain.
func (c *MailboxConfig) LoginUsername() string {
	if c.LoginDomain == "" || strings.Contains(c.Username, "@") {
		return c.Username
	}
	return c.Username + "@" + c.LoginDomain
}

// Address returns host:port of the IMAP server
func (c *MailboxConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Address returns host:port of the outbound relay
func (c *NotifierConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SenderAddress returns the envelope sender, defaulting to the relay login
func (c *NotifierConfig) SenderAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// ValidateMailbox validates what the inbox check needs
func (c *Config) ValidateMailbox() error {
	if c.Mailbox.Host == "" || c.Mailbox.Port <= 0 {
		return fmt.Errorf("mailbox host and port are required")
	}
	if c.Mailbox.Username == "" || c.Mailbox.Password == "" {
		return fmt.Errorf("mailbox username and password are required")
	}

	switch strings.ToLower(c.Mailbox.AuthMethod) {
	case "login", "plain":
	default:
		return fmt.Errorf("unsupported mailbox auth method: %s", c.Mailbox.AuthMethod)
	}

	switch c.Notifier.Transport {
	case "smtp":
		if c.Notifier.Host == "" || c.Notifier.Port <= 0 {
			return fmt.Errorf("smtp host and port are required")
		}
		if c.Notifier.Username == "" || c.Notifier.Password == "" {
			return fmt.Errorf("smtp username and password are required")
		}
	case "gmail":
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when using the gmail transport")
		}
		if c.Gmail.UserEmail == "" {
			return fmt.Errorf("gmail user_email is required as the sender address")
		}
	default:
		return fmt.Errorf("unsupported notifier transport: %s", c.Notifier.Transport)
	}

	return nil
}

// Validate validates the configuration used by the web service
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.IntervalMinutes <= 0 {
			return fmt.Errorf("scheduler interval must be greater than 0")
		}
		if err := c.ValidateMailbox(); err != nil {
			return err
		}
	}

	return nil
}
