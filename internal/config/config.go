package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"reg-mail-forwarder-go/internal/model"
)

// Ledger backends and scopes
const (
	LedgerBackendFile  = "file"
	LedgerBackendMySQL = "mysql"

	LedgerScopeDate   = "date"
	LedgerScopeGlobal = "global"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	IMAP      IMAPConfig      `mapstructure:"imap"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Defaults  RunDefaults     `mapstructure:"defaults"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP trigger configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	UploadDir    string        `mapstructure:"upload_dir"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LedgerConfig selects where forwarded registrations and failures are kept
type LedgerConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Scope   string `mapstructure:"scope"`
}

// DatabaseConfig holds database connection configuration for the mysql ledger
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// PacingConfig holds the pauses taken after each delivery attempt
type PacingConfig struct {
	AfterSuccess time.Duration `mapstructure:"after_success"`
	AfterFailure time.Duration `mapstructure:"after_failure"`
}

// IMAPConfig holds mailbox connection settings
type IMAPConfig struct {
	Port               int           `mapstructure:"port"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// SMTPConfig holds delivery connection settings
type SMTPConfig struct {
	Port               int           `mapstructure:"port"`
	StartTLS           bool          `mapstructure:"starttls"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// RunDefaults pre-fill the trigger form and drive scheduled runs
type RunDefaults struct {
	IMAPServer         string `mapstructure:"imap_server"`
	SMTPServer         string `mapstructure:"smtp_server"`
	StaffNumber        string `mapstructure:"staff_number"`
	SenderEmail        string `mapstructure:"sender_email"`
	Password           string `mapstructure:"password"`
	SenderFilter       string `mapstructure:"sender_filter"`
	RecipientTablePath string `mapstructure:"recipient_table_path"`
	CCEmail            string `mapstructure:"cc_email"`
	AttachmentPath     string `mapstructure:"attachment_path"`
	BoilerplatePath    string `mapstructure:"boilerplate_path"`
}

// SchedulerConfig holds the daily run schedule
type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30m")
	viper.SetDefault("server.upload_dir", "uploads")

	viper.SetDefault("log.level", "info")

	viper.SetDefault("ledger.backend", LedgerBackendFile)
	viper.SetDefault("ledger.dir", "data")
	viper.SetDefault("ledger.scope", LedgerScopeDate)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("pacing.after_success", "5s")
	viper.SetDefault("pacing.after_failure", "60s")

	viper.SetDefault("imap.port", 993)
	viper.SetDefault("imap.timeout", "60s")

	viper.SetDefault("smtp.port", 25)
	viper.SetDefault("smtp.starttls", true)
	viper.SetDefault("smtp.timeout", "60s")

	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.cron", "0 0 18 * * *")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.upload_dir", "SERVER_UPLOAD_DIR")

	viper.BindEnv("log.level", "LOG_LEVEL")

	// Ledger
	viper.BindEnv("ledger.backend", "LEDGER_BACKEND")
	viper.BindEnv("ledger.dir", "LEDGER_DIR")
	viper.BindEnv("ledger.scope", "LEDGER_SCOPE")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	// Pacing
	viper.BindEnv("pacing.after_success", "PACING_AFTER_SUCCESS")
	viper.BindEnv("pacing.after_failure", "PACING_AFTER_FAILURE")

	// Mail servers
	viper.BindEnv("imap.port", "IMAP_PORT")
	viper.BindEnv("imap.insecure_skip_verify", "IMAP_INSECURE_SKIP_VERIFY")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.starttls", "SMTP_STARTTLS")
	viper.BindEnv("smtp.insecure_skip_verify", "SMTP_INSECURE_SKIP_VERIFY")

	// Run defaults
	viper.BindEnv("defaults.imap_server", "FORWARDER_IMAP_SERVER")
	viper.BindEnv("defaults.smtp_server", "FORWARDER_SMTP_SERVER")
	viper.BindEnv("defaults.staff_number", "FORWARDER_STAFF_NUMBER")
	viper.BindEnv("defaults.sender_email", "FORWARDER_SENDER_EMAIL")
	viper.BindEnv("defaults.password", "FORWARDER_PASSWORD")
	viper.BindEnv("defaults.sender_filter", "FORWARDER_SENDER_FILTER")
	viper.BindEnv("defaults.recipient_table_path", "FORWARDER_RECIPIENT_TABLE")
	viper.BindEnv("defaults.cc_email", "FORWARDER_CC_EMAIL")
	viper.BindEnv("defaults.attachment_path", "FORWARDER_ATTACHMENT_PATH")
	viper.BindEnv("defaults.boilerplate_path", "FORWARDER_BOILERPLATE_PATH")

	// Scheduler
	viper.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	viper.BindEnv("scheduler.cron", "SCHEDULER_CRON")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Ledger.Backend {
	case LedgerBackendFile:
		if c.Ledger.Dir == "" {
			return fmt.Errorf("ledger dir is required for the file backend")
		}
	case LedgerBackendMySQL:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required for the mysql ledger")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	if c.Ledger.Scope != LedgerScopeDate && c.Ledger.Scope != LedgerScopeGlobal {
		return fmt.Errorf("ledger scope must be %q or %q", LedgerScopeDate, LedgerScopeGlobal)
	}

	if c.Pacing.AfterSuccess < 0 || c.Pacing.AfterFailure < 0 {
		return fmt.Errorf("pacing delays must not be negative")
	}

	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid smtp port %d", c.SMTP.Port)
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.Cron == "" {
			return fmt.Errorf("scheduler cron schedule is required when the scheduler is enabled")
		}
		if c.Defaults.RecipientTablePath == "" || c.Defaults.Password == "" {
			return fmt.Errorf("scheduled runs need defaults.recipient_table_path and defaults.password")
		}
	}

	return nil
}

// RunRequest carries the operator supplied fields of a run. Empty fields
// fall back to the configured defaults.
type RunRequest struct {
	IMAPServer         string
	SMTPServer         string
	SMTPPort           int
	MailDate           string
	StaffNumber        string
	SenderEmail        string
	Password           string
	SenderFilter       string
	RecipientTablePath string
	CCEmail            string
	AttachmentPath     string
	Boilerplate        string
}

// RunConfig builds the immutable configuration of one run. The boilerplate
// file is read here, once per run.
func (c *Config) RunConfig(req RunRequest) (*model.RunConfig, error) {
	d := c.Defaults

	mailDate, err := model.ParseMailDate(strings.TrimSpace(req.MailDate))
	if err != nil {
		return nil, err
	}

	boilerplate := req.Boilerplate
	if boilerplate == "" && d.BoilerplatePath != "" {
		data, err := os.ReadFile(d.BoilerplatePath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read boilerplate: %v", model.ErrConfig, err)
		}
		boilerplate = strings.TrimRight(string(data), "\r\n")
	}

	smtpPort := req.SMTPPort
	if smtpPort == 0 {
		smtpPort = c.SMTP.Port
	}

	scope := LedgerScopeGlobal
	if c.Ledger.Scope == LedgerScopeDate {
		scope = mailDate.Format("2006-01-02")
	}

	cfg := &model.RunConfig{
		IMAPServer:         firstNonEmpty(req.IMAPServer, d.IMAPServer),
		SMTPServer:         firstNonEmpty(req.SMTPServer, d.SMTPServer),
		SMTPPort:           smtpPort,
		MailDate:           mailDate,
		StaffCredential:    firstNonEmpty(req.StaffNumber, d.StaffNumber),
		SenderEmail:        firstNonEmpty(req.SenderEmail, d.SenderEmail),
		Password:           firstSet(req.Password, d.Password),
		RecipientTablePath: firstNonEmpty(req.RecipientTablePath, d.RecipientTablePath),
		SenderFilter:       firstNonEmpty(req.SenderFilter, d.SenderFilter),
		CCEmail:            firstNonEmpty(req.CCEmail, d.CCEmail),
		AttachmentPath:     firstNonEmpty(req.AttachmentPath, d.AttachmentPath),
		Boilerplate:        boilerplate,
		LedgerScope:        scope,
		LedgerPath:         filepath.Join(c.Ledger.Dir, "forwarded_"+scope+".txt"),
		FailureLogPath:     filepath.Join(c.Ledger.Dir, "not_forwarded_log_"+scope+".txt"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// firstSet returns the first non-empty value untouched. Used for secrets,
// where surrounding spaces are significant.
func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
