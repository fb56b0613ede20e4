package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Server struct {
		Address      string        `yaml:"address" env:"SERVER_ADDRESS"`
		BaseURL      string        `yaml:"base_url" env:"SERVER_BASE_URL"`
		ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
		WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
		CORSOrigins  []string      `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`

	SentryDSN string `yaml:"-" env:"SENTRY_DSN"`

	Razorpay struct {
		KeyID     string `yaml:"-" env:"RAZORPAY_KEY_ID"`
		KeySecret string `yaml:"-" env:"RAZORPAY_KEY_SECRET"`
		BaseURL   string `yaml:"base_url" env:"RAZORPAY_BASE_URL"`
		Currency  string `yaml:"currency" env:"RAZORPAY_CURRENCY"`
	} `yaml:"razorpay"`

	UltraMsg struct {
		Instance string `yaml:"instance" env:"ULTRAMSG_INSTANCE"`
		Token    string `yaml:"-" env:"ULTRAMSG_TOKEN"`
		BaseURL  string `yaml:"base_url" env:"ULTRAMSG_BASE_URL"`
	} `yaml:"ultramsg"`

	Storage struct {
		AccessKey     string `yaml:"-" env:"S3_ACCESS_KEY"`
		SecretKey     string `yaml:"-" env:"S3_SECRET_KEY"`
		Bucket        string `yaml:"bucket" env:"S3_BUCKET"`
		Region        string `yaml:"region" env:"S3_REGION"`
		Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT"`
		PublicBaseURL string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	} `yaml:"storage"`

	Firebase struct {
		CredentialsFile string `yaml:"credentials_file" env:"FIREBASE_CREDENTIALS_FILE"`
		ProjectID       string `yaml:"project_id" env:"FIREBASE_PROJECT_ID"`
		OperatorTopic   string `yaml:"operator_topic" env:"FIREBASE_OPERATOR_TOPIC"`
	} `yaml:"firebase"`

	Workflow struct {
		Mode                string        `yaml:"mode" env:"WORKFLOW_MODE"`
		FallbackPhone       string        `yaml:"fallback_phone" env:"WORKFLOW_FALLBACK_PHONE"`
		PollAttempts        uint          `yaml:"poll_attempts" env:"WORKFLOW_POLL_ATTEMPTS"`
		PollInterval        time.Duration `yaml:"poll_interval" env:"WORKFLOW_POLL_INTERVAL"`
		ConfirmOnlyWhenPaid bool          `yaml:"confirm_only_when_paid" env:"WORKFLOW_CONFIRM_ONLY_WHEN_PAID"`
		SendDocument        bool          `yaml:"send_document" env:"WORKFLOW_SEND_DOCUMENT"`
	} `yaml:"workflow"`

	Reminders struct {
		Enabled      bool          `yaml:"enabled" env:"REMINDERS_ENABLED"`
		Interval     time.Duration `yaml:"interval" env:"REMINDERS_INTERVAL"`
		SweepTimeout time.Duration `yaml:"sweep_timeout" env:"REMINDERS_SWEEP_TIMEOUT"`
		IndexedQuery bool          `yaml:"indexed_query" env:"REMINDERS_INDEXED_QUERY"`
	} `yaml:"reminders"`

	Ledger struct {
		Backend     string `yaml:"backend" env:"LEDGER_BACKEND"`
		Path        string `yaml:"path" env:"LEDGER_PATH"`
		PersistEach bool   `yaml:"persist_each" env:"LEDGER_PERSIST_EACH"`
		RedisAddr   string `yaml:"redis_addr" env:"LEDGER_REDIS_ADDR"`
		RedisKey    string `yaml:"redis_key" env:"LEDGER_REDIS_KEY"`
		PostgresURL string `yaml:"-" env:"LEDGER_DATABASE_URL"`
	} `yaml:"ledger"`

	Agent struct {
		APIKey          string `yaml:"-" env:"OPENROUTER_API_KEY"`
		BaseURL         string `yaml:"base_url" env:"AGENT_BASE_URL"`
		Model           string `yaml:"model" env:"AGENT_MODEL"`
		MaxToolRounds   int    `yaml:"max_tool_rounds" env:"AGENT_MAX_TOOL_ROUNDS"`
		HistoryLimit    int    `yaml:"history_limit" env:"AGENT_HISTORY_LIMIT"`
		ReminderWorkers int    `yaml:"reminder_workers" env:"AGENT_REMINDER_WORKERS"`
		ReminderQueue   int    `yaml:"reminder_queue" env:"AGENT_REMINDER_QUEUE"`
	} `yaml:"agent"`
}

const (
	WorkflowModeStrict     = "strict"
	WorkflowModeBestEffort = "best_effort"

	LedgerBackendFile     = "file"
	LedgerBackendRedis    = "redis"
	LedgerBackendPostgres = "postgres"
)

// Defaults returns the configuration used when neither file nor environment set a value.
func Defaults() Config {
	var cfg Config
	cfg.Server.Address = ":8000"
	cfg.Server.BaseURL = "https://your-server.com"
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Log.Level = "info"
	cfg.Razorpay.BaseURL = "https://api.razorpay.com"
	cfg.Razorpay.Currency = "INR"
	cfg.UltraMsg.BaseURL = "https://api.ultramsg.com"
	cfg.Storage.Region = "us-east-1"
	cfg.Workflow.Mode = WorkflowModeStrict
	cfg.Workflow.FallbackPhone = "+918765432109"
	cfg.Workflow.PollAttempts = 6
	cfg.Workflow.PollInterval = 5 * time.Second
	cfg.Workflow.ConfirmOnlyWhenPaid = true
	cfg.Reminders.Enabled = true
	cfg.Reminders.Interval = time.Hour
	cfg.Reminders.SweepTimeout = 5 * time.Minute
	cfg.Ledger.Backend = LedgerBackendFile
	cfg.Ledger.Path = "sent_reminders.json"
	cfg.Ledger.RedisKey = "invoicebot:sent_reminders"
	cfg.Agent.BaseURL = "https://openrouter.ai/api/v1"
	cfg.Agent.Model = "x-ai/grok-4.1-fast"
	cfg.Agent.MaxToolRounds = 5
	cfg.Agent.HistoryLimit = 40
	cfg.Agent.ReminderWorkers = 4
	cfg.Agent.ReminderQueue = 64
	return cfg
}

// LoadConfig reads the YAML file named by CONFIG_PATH (optional) on top of the
// defaults, then applies environment overrides.
func LoadConfig() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	return Load(path, explicit)
}

func Load(path string, required bool) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at first use.
func (c Config) Validate() error {
	switch c.Workflow.Mode {
	case WorkflowModeStrict, WorkflowModeBestEffort:
	default:
		return fmt.Errorf("workflow.mode must be %q or %q, got %q", WorkflowModeStrict, WorkflowModeBestEffort, c.Workflow.Mode)
	}
	if c.Workflow.PollAttempts == 0 {
		return errors.New("workflow.poll_attempts must be positive")
	}
	if c.Workflow.PollInterval < 0 {
		return errors.New("workflow.poll_interval must not be negative")
	}
	if c.Reminders.Enabled && c.Reminders.Interval <= 0 {
		return errors.New("reminders.interval must be positive")
	}
	switch strings.ToLower(c.Ledger.Backend) {
	case LedgerBackendFile:
		if c.Ledger.Path == "" {
			return errors.New("ledger.path is required for the file backend")
		}
	case LedgerBackendRedis:
		if c.Ledger.RedisAddr == "" {
			return errors.New("ledger.redis_addr is required for the redis backend")
		}
	case LedgerBackendPostgres:
		if c.Ledger.PostgresURL == "" {
			return errors.New("LEDGER_DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Agent.ReminderWorkers <= 0 || c.Agent.ReminderQueue <= 0 {
		return errors.New("agent.reminder_workers and agent.reminder_queue must be positive")
	}
	return nil
}
