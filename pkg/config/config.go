package config

import (
	"errors"
	"fmt"
	"math"
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
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Grading  GradingConfig
	Reports  ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GradingConfig holds the canonical grading policy and result caching knobs.
type GradingConfig struct {
	PassThreshold           float64
	DefaultSupervisorWeight float64
	DefaultModeratorWeight  float64
	HistogramBins           int
	ZeroAsUngraded          bool
	ResultWorkers           int
	ComputeTimeout          time.Duration
	CacheEnabled            bool
	CacheTTL                time.Duration
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	CSVByteOrderMark  bool
}

// Load reads configuration from the process environment, falling back to a
// .env file in the working directory and then to built-in defaults. The
// result is validated before it is returned.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database:  loadDatabase(v),
		Redis:     loadRedis(v),
		JWT:       loadJWT(v),
		CORS:      CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))},
		Log:       LogConfig{Level: v.GetString("LOG_LEVEL"), Format: v.GetString("LOG_FORMAT")},
		Grading:   loadGrading(v),
		Reports:   loadReports(v),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the grading engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	g := c.Grading
	if g.PassThreshold <= 0 || g.PassThreshold > 100 {
		errs = append(errs, fmt.Errorf("GRADING_PASS_THRESHOLD must be in (0, 100], got %v", g.PassThreshold))
	}
	if g.DefaultSupervisorWeight < 0 || g.DefaultModeratorWeight < 0 ||
		math.Abs(g.DefaultSupervisorWeight+g.DefaultModeratorWeight-100) > 1e-9 {
		errs = append(errs, fmt.Errorf("default role weights must be non-negative and sum to 100, got %v/%v",
			g.DefaultSupervisorWeight, g.DefaultModeratorWeight))
	}
	if g.HistogramBins < 1 {
		errs = append(errs, fmt.Errorf("GRADING_HISTOGRAM_BINS must be positive, got %d", g.HistogramBins))
	}
	if c.Env == EnvProduction {
		if c.JWT.Secret == defaults["JWT_SECRET"] {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		}
		if c.Reports.Enabled && c.Reports.SignedURLSecret == defaults["REPORTS_SIGNED_URL_SECRET"] {
			errs = append(errs, errors.New("REPORTS_SIGNED_URL_SECRET must be set in production"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func loadDatabase(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}
}

func loadRedis(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}
}

func loadJWT(v *viper.Viper) JWTConfig {
	return JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: durationOr(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}
}

func loadGrading(v *viper.Viper) GradingConfig {
	return GradingConfig{
		PassThreshold:           v.GetFloat64("GRADING_PASS_THRESHOLD"),
		DefaultSupervisorWeight: v.GetFloat64("GRADING_DEFAULT_SUPERVISOR_WEIGHT"),
		DefaultModeratorWeight:  v.GetFloat64("GRADING_DEFAULT_MODERATOR_WEIGHT"),
		HistogramBins:           v.GetInt("GRADING_HISTOGRAM_BINS"),
		ZeroAsUngraded:          v.GetBool("GRADING_ZERO_AS_UNGRADED"),
		ResultWorkers:           v.GetInt("GRADING_RESULT_WORKERS"),
		ComputeTimeout:          durationOr(v.GetString("GRADING_COMPUTE_TIMEOUT"), 30*time.Second),
		CacheEnabled:            v.GetBool("GRADING_CACHE_ENABLED"),
		CacheTTL:                durationOr(v.GetString("GRADING_CACHE_TTL"), 5*time.Minute),
	}
}

func loadReports(v *viper.Viper) ReportsConfig {
	return ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      durationOr(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   durationOr(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		CSVByteOrderMark:  v.GetBool("REPORTS_CSV_BOM"),
	}
}

var defaults = map[string]interface{}{
	"ENV":        EnvDevelopment,
	"PORT":       8080,
	"API_PREFIX": "/api/v1",

	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_PASSWORD":       "postgres",
	"DB_NAME":           "fyp_portal",
	"DB_SSL_MODE":       "disable",
	"DB_MAX_OPEN_CONNS": 10,
	"DB_MAX_IDLE_CONNS": 5,

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"JWT_SECRET":     "dev_secret",
	"JWT_EXPIRATION": "24h",
	"JWT_ISSUER":     "fyp-grading-api",

	"ALLOWED_ORIGINS": "",
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",

	"GRADING_PASS_THRESHOLD":            60,
	"GRADING_DEFAULT_SUPERVISOR_WEIGHT": 70,
	"GRADING_DEFAULT_MODERATOR_WEIGHT":  30,
	"GRADING_HISTOGRAM_BINS":            10,
	"GRADING_ZERO_AS_UNGRADED":          false,
	"GRADING_RESULT_WORKERS":            4,
	"GRADING_COMPUTE_TIMEOUT":           "30s",
	"GRADING_CACHE_ENABLED":             false,
	"GRADING_CACHE_TTL":                 "5m",

	"ENABLE_REPORTS":             false,
	"REPORTS_STORAGE_DIR":        "./exports",
	"REPORTS_SIGNED_URL_SECRET":  "dev_reports_secret",
	"REPORTS_SIGNED_URL_TTL":     "24h",
	"REPORTS_CLEANUP_INTERVAL":   "1h",
	"REPORTS_WORKER_CONCURRENCY": 1,
	"REPORTS_WORKER_RETRIES":     3,
	"REPORTS_CSV_BOM":            false,
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

// durationOr parses raw, returning fallback when it is empty or malformed.
func durationOr(raw string, fallback time.Duration) time.Duration {
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
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
