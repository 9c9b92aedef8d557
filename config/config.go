package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration, read once at start-up and passed
// explicitly to the components that need it.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Mail     MailConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Port            string
	GinMode         string
	AllowedOrigins  []string
	PublicRateLimit float64 // requests per second per client IP on public routes
	PublicBurst     int
}

type DatabaseConfig struct {
	Driver   string // mysql | postgres
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DebugSQL bool
	Env      string
}

// EngineConfig holds the tunables of the application lifecycle engine.
type EngineConfig struct {
	ReferencePrefix      string
	ReferenceLength      int
	ReferenceMaxAttempts int
	EditWindow           time.Duration
	DeadlineCacheTTL     time.Duration
	DuplicateLookback    time.Duration
	NotifyWorkers        int
	NotifyQueueSize      int
}

type MailConfig struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string // e.g. "Bursary Office <no-reply@your.org>"
	SkipTLSVerify bool
	ContactEmail  string
	OfficeName    string // shown in notification headers
}

type StorageConfig struct {
	Backend     string // local | s3
	UploadPath  string
	MaxFileSize int64
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type JobsConfig struct {
	OrphanCleanupSchedule string // cron spec; empty disables
}

// DefaultEngineConfig returns the engine defaults used when no override is set.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ReferencePrefix:      "MNG",
		ReferenceLength:      8,
		ReferenceMaxAttempts: 5,
		EditWindow:           24 * time.Hour,
		DeadlineCacheTTL:     30 * time.Second,
		DuplicateLookback:    180 * 24 * time.Hour,
		NotifyWorkers:        3,
		NotifyQueueSize:      100,
	}
}

// Load reads the configuration from the environment. Callers are expected to
// have loaded any .env file beforehand.
func Load() (*Config, error) {
	var errs []string
	r := envReader{errs: &errs}

	engine := DefaultEngineConfig()
	engine.ReferencePrefix = strings.ToUpper(r.str("REFERENCE_PREFIX", engine.ReferencePrefix))
	engine.ReferenceLength = r.int("REFERENCE_LENGTH", engine.ReferenceLength)
	engine.ReferenceMaxAttempts = r.int("REFERENCE_MAX_ATTEMPTS", engine.ReferenceMaxAttempts)
	engine.EditWindow = r.duration("EDIT_WINDOW", engine.EditWindow)
	engine.DeadlineCacheTTL = r.duration("DEADLINE_CACHE_TTL", engine.DeadlineCacheTTL)
	engine.DuplicateLookback = r.duration("DUPLICATE_LOOKBACK", engine.DuplicateLookback)
	engine.NotifyWorkers = r.int("NOTIFY_WORKERS", engine.NotifyWorkers)
	engine.NotifyQueueSize = r.int("NOTIFY_QUEUE_SIZE", engine.NotifyQueueSize)

	cfg := &Config{
		Server: ServerConfig{
			Port:            r.str("SERVER_PORT", "8080"),
			GinMode:         r.str("GIN_MODE", "debug"),
			AllowedOrigins:  splitList(r.str("ALLOWED_ORIGINS", "http://localhost:3000")),
			PublicRateLimit: r.float("PUBLIC_RATE_LIMIT", 5),
			PublicBurst:     r.int("PUBLIC_RATE_BURST", 10),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(r.str("DB_DRIVER", "mysql")),
			Host:     r.str("DB_HOST", "127.0.0.1"),
			Port:     r.str("DB_PORT", ""),
			Name:     r.str("DB_DATABASE", "bursary"),
			User:     r.str("DB_USERNAME", ""),
			Password: r.str("DB_PASSWORD", ""),
			SSLMode:  r.str("DB_SSLMODE", "disable"),
			DebugSQL: r.bool("DEBUG_SQL", false),
			Env:      strings.ToLower(r.str("ENVIRONMENT", "development")),
		},
		Engine: engine,
		Mail: MailConfig{
			Host:          r.str("SMTP_HOST", ""),
			Port:          r.int("SMTP_PORT", 587),
			User:          r.str("SMTP_USER", ""),
			Pass:          r.str("SMTP_PASS", ""),
			From:          r.str("SMTP_FROM", ""),
			SkipTLSVerify: r.str("SMTP_SKIP_TLS_VERIFY", "") == "1",
			ContactEmail:  r.str("CONTACT_EMAIL", ""),
			OfficeName:    r.str("OFFICE_NAME", "Masinga NG-CDF"),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(r.str("STORAGE_BACKEND", "local")),
			UploadPath:  r.str("UPLOAD_PATH", "./uploads"),
			MaxFileSize: int64(r.int("UPLOAD_MAX_BYTES", 5<<20)),
			S3Bucket:    r.str("S3_BUCKET", ""),
			S3Region:    r.str("S3_REGION", "us-east-1"),
			S3Endpoint:  r.str("S3_ENDPOINT", ""),
			S3AccessKey: r.str("S3_ACCESS_KEY", ""),
			S3SecretKey: r.str("S3_SECRET_KEY", ""),
		},
		Auth: AuthConfig{
			JWTSecret: r.str("JWT_SECRET", ""),
			TokenTTL:  r.duration("JWT_TTL", 12*time.Hour),
		},
		Jobs: JobsConfig{
			OrphanCleanupSchedule: r.str("ORPHAN_CLEANUP_SCHEDULE", "0 3 * * *"),
		},
	}

	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
		if cfg.Database.Driver == "postgres" {
			cfg.Database.Port = "5432"
		}
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			problems = append(problems, "S3_BUCKET is required for the s3 storage backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if err := c.Engine.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks the engine tunables for values the engine cannot work with.
func (e EngineConfig) Validate() error {
	switch {
	case e.ReferencePrefix == "":
		return fmt.Errorf("reference prefix must not be empty")
	case e.ReferenceLength < 4:
		return fmt.Errorf("reference length must be at least 4")
	case e.ReferenceMaxAttempts < 1:
		return fmt.Errorf("reference max attempts must be at least 1")
	case e.EditWindow <= 0:
		return fmt.Errorf("edit window must be positive")
	}
	return nil
}

type envReader struct {
	errs *[]string
}

func (r envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r envReader) int(key string, def int) int {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func (r envReader) float(key string, def float64) float64 {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func (r envReader) bool(key string, def bool) bool {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func (r envReader) duration(key string, def time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
