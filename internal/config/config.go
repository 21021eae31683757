// Package config loads gatekeep configuration from a YAML file overlaid
// with GATEKEEP_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/evaluator"
	"github.com/abhisek/gatekeep/internal/llm"
	"github.com/abhisek/gatekeep/internal/lock"
	"github.com/abhisek/gatekeep/internal/logging"
	"github.com/abhisek/gatekeep/internal/proctor"
	"github.com/abhisek/gatekeep/internal/questions"
	"github.com/abhisek/gatekeep/internal/sandbox"
	"github.com/abhisek/gatekeep/internal/store/postgres"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Lock drivers.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Sandbox drivers.
const (
	SandboxDocker  = "docker"
	SandboxProcess = "process"
)

// Resume extractors.
const (
	ExtractorText = "text"
	ExtractorLLM  = "llm"
)

// Config holds all configuration for gatekeep.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        logging.Config   `yaml:"log"`
	Store      StoreConfig      `yaml:"store"`
	Lock       LockConfig       `yaml:"lock"`
	LLM        llm.Config       `yaml:"llm"`
	Questions  QuestionsConfig  `yaml:"questions"`
	Resume     ResumeConfig     `yaml:"resume"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Notify     NotifyConfig     `yaml:"notify"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// StoreConfig selects where sessions are kept.
type StoreConfig struct {
	Driver   string          `yaml:"driver"`
	Path     string          `yaml:"path"` // sqlite file; empty uses the default data dir
	Postgres postgres.Config `yaml:"postgres"`
}

// LockConfig selects the per-session lock.
type LockConfig struct {
	Driver string           `yaml:"driver"`
	Redis  lock.RedisConfig `yaml:"redis"`
}

type QuestionsConfig struct {
	// BankPath replaces the embedded question bank when set.
	BankPath string               `yaml:"bank_path"`
	Bank     questions.BankConfig `yaml:"bank"`
}

type ResumeConfig struct {
	Extractor string `yaml:"extractor"`
	// Skills extends the built-in skill dictionary.
	Skills []string `yaml:"skills"`
}

type SandboxConfig struct {
	Driver string         `yaml:"driver"`
	Docker sandbox.Config `yaml:"docker"`
}

type AssessmentConfig struct {
	Thresholds      evaluator.Thresholds `yaml:"thresholds"`
	Policy          proctor.Policy       `yaml:"policy"`
	Durations       assessment.Durations `yaml:"durations"`
	DefaultLanguage string               `yaml:"default_language"`
	SweepInterval   time.Duration        `yaml:"sweep_interval"`
}

type NotifyConfig struct {
	// WebhookURL receives a Slack-compatible message per verdict.
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  5 << 20,
		},
		Log:       logging.DefaultConfig(),
		Store:     StoreConfig{Driver: StoreSQLite},
		Lock:      LockConfig{Driver: LockLocal},
		LLM:       llm.DefaultConfig(),
		Questions: QuestionsConfig{Bank: questions.DefaultBankConfig()},
		Resume:    ResumeConfig{Extractor: ExtractorText},
		Sandbox:   SandboxConfig{Driver: SandboxDocker, Docker: sandbox.DefaultConfig()},
		Assessment: AssessmentConfig{
			Thresholds:      evaluator.DefaultThresholds(),
			Policy:          proctor.DefaultPolicy(),
			Durations:       assessment.DefaultDurations(),
			DefaultLanguage: questions.LangPython,
			SweepInterval:   30 * time.Second,
		},
		Notify: NotifyConfig{Timeout: 10 * time.Second},
	}
}

// Load reads path (when non-empty) over the defaults, applies the
// environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Decode unmarshals YAML onto cfg, rejecting unknown keys.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays GATEKEEP_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	setFromEnv(&cfg.Server.Addr, "GATEKEEP_ADDR")
	if v := os.Getenv("GATEKEEP_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	setFromEnv(&cfg.Log.Level, "GATEKEEP_LOG_LEVEL")
	setFromEnv(&cfg.Log.Format, "GATEKEEP_LOG_FORMAT")

	setFromEnv(&cfg.Store.Driver, "GATEKEEP_STORE")
	setFromEnv(&cfg.Store.Path, "GATEKEEP_DB")
	setFromEnv(&cfg.Store.Postgres.DSN, "GATEKEEP_POSTGRES_DSN")

	setFromEnv(&cfg.Lock.Driver, "GATEKEEP_LOCK")
	setFromEnv(&cfg.Lock.Redis.Addr, "GATEKEEP_REDIS_ADDR")
	setFromEnv(&cfg.Lock.Redis.Password, "GATEKEEP_REDIS_PASSWORD")
	if err := intFromEnv(&cfg.Lock.Redis.DB, "GATEKEEP_REDIS_DB"); err != nil {
		return err
	}

	setFromEnv(&cfg.Questions.BankPath, "GATEKEEP_QUESTION_BANK")
	setFromEnv(&cfg.Resume.Extractor, "GATEKEEP_RESUME_EXTRACTOR")

	setFromEnv(&cfg.Sandbox.Driver, "GATEKEEP_SANDBOX")
	setFromEnv(&cfg.Sandbox.Docker.Host, "GATEKEEP_DOCKER_HOST")
	if err := durationFromEnv(&cfg.Sandbox.Docker.Timeout, "GATEKEEP_SANDBOX_TIMEOUT"); err != nil {
		return err
	}

	setFromEnv(&cfg.Assessment.DefaultLanguage, "GATEKEEP_DEFAULT_LANGUAGE")
	if err := durationFromEnv(&cfg.Assessment.SweepInterval, "GATEKEEP_SWEEP_INTERVAL"); err != nil {
		return err
	}

	setFromEnv(&cfg.Notify.WebhookURL, "GATEKEEP_WEBHOOK_URL")

	llm.ApplyEnv(&cfg.LLM)
	return nil
}

// Validate checks driver names and the nested assessment settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Lock.Driver {
	case LockLocal:
	case LockRedis:
		if c.Lock.Redis.Addr == "" {
			errs = append(errs, errors.New("lock.redis.addr is required for the redis lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock driver %q", c.Lock.Driver))
	}

	switch c.Sandbox.Driver {
	case SandboxDocker, SandboxProcess:
	default:
		errs = append(errs, fmt.Errorf("unknown sandbox driver %q", c.Sandbox.Driver))
	}

	switch c.Resume.Extractor {
	case ExtractorText:
	case ExtractorLLM:
		if !c.LLM.Enabled() {
			errs = append(errs, errors.New("the llm resume extractor needs an LLM provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown resume extractor %q", c.Resume.Extractor))
	}

	if _, ok := questions.NormalizeLanguage(c.Assessment.DefaultLanguage); !ok {
		errs = append(errs, fmt.Errorf("unsupported default language %q", c.Assessment.DefaultLanguage))
	}
	if c.Assessment.SweepInterval <= 0 {
		errs = append(errs, errors.New("assessment.sweep_interval must be positive"))
	}
	if err := c.Assessment.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Assessment.Policy.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intFromEnv(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func durationFromEnv(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
