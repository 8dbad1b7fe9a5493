package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Host      string
	Port      int
	APIPrefix string

	ShutdownTimeout time.Duration

	Vault     VaultConfig
	Policy    PolicyConfig
	Ingest    IngestConfig
	Recompute RecomputeConfig
	CORS      CORSConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Docs      DocsConfig
}

// VaultConfig locates the sealed store and tunes key derivation.
type VaultConfig struct {
	Path          string
	WorkDir       string
	KDFIterations int
	MaxOpenConns  int
}

// PolicyConfig controls calculation model resolution.
type PolicyConfig struct {
	File             string
	DefaultCalcModel string
}

// IngestConfig tunes upload processing.
type IngestConfig struct {
	Workers      int
	MaxFileBytes int64
	UploadDir    string
}

// RecomputeConfig configures the background recompute queue.
type RecomputeConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// DocsConfig toggles the swagger UI.
type DocsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Host = v.GetString("HTTP_HOST")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.ShutdownTimeout = parseDuration(v.GetString("SHUTDOWN_TIMEOUT"), 10*time.Second)

	cfg.Vault = VaultConfig{
		Path:          v.GetString("VAULT_PATH"),
		WorkDir:       v.GetString("VAULT_WORK_DIR"),
		KDFIterations: v.GetInt("VAULT_KDF_ITERATIONS"),
		MaxOpenConns:  v.GetInt("VAULT_MAX_OPEN_CONNS"),
	}

	cfg.Policy = PolicyConfig{
		File:             v.GetString("POLICY_FILE"),
		DefaultCalcModel: strings.ToUpper(strings.TrimSpace(v.GetString("DEFAULT_CALC_MODEL"))),
	}

	maxUpload := v.GetInt64("INGEST_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Ingest = IngestConfig{
		Workers:      v.GetInt("INGEST_WORKERS"),
		MaxFileBytes: maxUpload,
		UploadDir:    v.GetString("INGEST_UPLOAD_DIR"),
	}

	cfg.Recompute = RecomputeConfig{
		Workers:    v.GetInt("RECOMPUTE_QUEUE_WORKERS"),
		Retries:    v.GetInt("RECOMPUTE_QUEUE_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RECOMPUTE_RETRY_DELAY"), time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}
	cfg.Docs = DocsConfig{Enabled: v.GetBool("ENABLE_DOCS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("HTTP_HOST", "127.0.0.1")
	v.SetDefault("PORT", 8765)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("VAULT_PATH", "./data/marks.vault")
	v.SetDefault("VAULT_WORK_DIR", "")
	v.SetDefault("VAULT_KDF_ITERATIONS", 600000)
	v.SetDefault("VAULT_MAX_OPEN_CONNS", 1)

	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("DEFAULT_CALC_MODEL", "UG-STANDARD")

	v.SetDefault("INGEST_WORKERS", 4)
	v.SetDefault("INGEST_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("INGEST_UPLOAD_DIR", "")

	v.SetDefault("RECOMPUTE_QUEUE_WORKERS", 1)
	v.SetDefault("RECOMPUTE_QUEUE_RETRIES", 3)
	v.SetDefault("RECOMPUTE_RETRY_DELAY", "1s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("ENABLE_DOCS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
