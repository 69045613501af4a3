package config

import (
	"errors"
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

	AWS        AWSConfig
	Surveys    SurveyConfig
	Compliance ComplianceConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	JWT        JWTConfig
	Auth       AuthConfig
	CORS       CORSConfig
	Log        LogConfig
	Dashboard  DashboardConfig
	Reports    ReportsConfig
	Tracing    TracingConfig
}

// AWSConfig points the service at the participant table, dispatch logs and SNS.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	EndpointURL          string
	MaxAttempts          int
	ParticipantTableName string
	LogGroupPrefix       string
	LogStreamLimit       int
}

// SurveyConfig locates the survey exports and the participant reference table.
type SurveyConfig struct {
	Survey1APath        string
	Survey1BPath        string
	Survey2APath        string
	Survey2BPath        string
	Survey3Path         string
	Survey4Path         string
	ParticipantDBPath   string
	SourceTimezone      string
	ReferenceTimezone   string
	ScheduleCatalogPath string
}

// ComplianceConfig tunes evaluation behaviour.
type ComplianceConfig struct {
	RollingMode   string
	SendTimeOrder string
	Timeout       time.Duration
	MaxParallel   int
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

// CacheConfig toggles Redis backed caching of dashboard payloads.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AuthConfig holds the staff account allowed to sign in.
type AuthConfig struct {
	AdminEmail        string
	AdminPasswordHash string
	AdminName         string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs dashboard summaries.
type DashboardConfig struct {
	RecruitmentTarget int
	CacheTTL          time.Duration
}

// ReportsConfig configures asynchronous compliance exports.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	ServiceName string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.AWS = AWSConfig{
		Region:               v.GetString("AWS_REGION"),
		AccessKeyID:          v.GetString("AWS_ACCESS_KEY_ID"),
		SecretAccessKey:      v.GetString("AWS_SECRET_ACCESS_KEY"),
		EndpointURL:          v.GetString("AWS_ENDPOINT_URL"),
		MaxAttempts:          v.GetInt("AWS_MAX_ATTEMPTS"),
		ParticipantTableName: v.GetString("PARTICIPANT_TABLE_NAME"),
		LogGroupPrefix:       v.GetString("LOG_GROUP_PREFIX"),
		LogStreamLimit:       v.GetInt("LOG_STREAM_LIMIT"),
	}

	cfg.Surveys = SurveyConfig{
		Survey1APath:        v.GetString("SURVEY_1A_PATH"),
		Survey1BPath:        v.GetString("SURVEY_1B_PATH"),
		Survey2APath:        v.GetString("SURVEY_2A_PATH"),
		Survey2BPath:        v.GetString("SURVEY_2B_PATH"),
		Survey3Path:         v.GetString("SURVEY_3_PATH"),
		Survey4Path:         v.GetString("SURVEY_4_PATH"),
		ParticipantDBPath:   v.GetString("PARTICIPANT_DB_PATH"),
		SourceTimezone:      v.GetString("SURVEY_TIMEZONE"),
		ReferenceTimezone:   v.GetString("REFERENCE_TIMEZONE"),
		ScheduleCatalogPath: v.GetString("SCHEDULE_CATALOG_PATH"),
	}

	cfg.Compliance = ComplianceConfig{
		RollingMode:   strings.ToLower(v.GetString("COMPLIANCE_ROLLING_MODE")),
		SendTimeOrder: strings.ToLower(v.GetString("SEND_TIME_ORDER")),
		Timeout:       parseDuration(v.GetString("COMPLIANCE_TIMEOUT"), 45*time.Second),
		MaxParallel:   v.GetInt("COMPLIANCE_MAX_PARALLEL"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Auth = AuthConfig{
		AdminEmail:        v.GetString("ADMIN_EMAIL"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		AdminName:         v.GetString("ADMIN_NAME"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		RecruitmentTarget: v.GetInt("RECRUITMENT_TARGET"),
		CacheTTL:          parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	cfg.Tracing = TracingConfig{
		Enabled:     v.GetBool("OTEL_ENABLED"),
		Exporter:    strings.ToLower(v.GetString("OTEL_EXPORTER")),
		Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		SampleRatio: v.GetFloat64("OTEL_SAMPLER_RATIO"),
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("AWS_ENDPOINT_URL", "")
	v.SetDefault("AWS_MAX_ATTEMPTS", 3)
	v.SetDefault("PARTICIPANT_TABLE_NAME", "INSIGHT_Part3_Participants")
	v.SetDefault("LOG_GROUP_PREFIX", "/aws/lambda/INSIGHT_Part3_")
	v.SetDefault("LOG_STREAM_LIMIT", 50)

	v.SetDefault("SURVEY_1A_PATH", "./data/survey_1a.csv")
	v.SetDefault("SURVEY_1B_PATH", "./data/survey_1b.csv")
	v.SetDefault("SURVEY_2A_PATH", "./data/survey_2a.csv")
	v.SetDefault("SURVEY_2B_PATH", "./data/survey_2b.csv")
	v.SetDefault("SURVEY_3_PATH", "./data/survey_3.csv")
	v.SetDefault("SURVEY_4_PATH", "./data/survey_4.csv")
	v.SetDefault("PARTICIPANT_DB_PATH", "./data/participants.csv")
	v.SetDefault("SURVEY_TIMEZONE", "America/Denver")
	v.SetDefault("REFERENCE_TIMEZONE", "America/New_York")
	v.SetDefault("SCHEDULE_CATALOG_PATH", "")

	v.SetDefault("COMPLIANCE_ROLLING_MODE", "skip")
	v.SetDefault("SEND_TIME_ORDER", "fetch")
	v.SetDefault("COMPLIANCE_TIMEOUT", "45s")
	v.SetDefault("COMPLIANCE_MAX_PARALLEL", 4)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "insight_compliance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "insight-compliance-api")

	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("ADMIN_NAME", "Study Coordinator")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RECRUITMENT_TARGET", 65)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER", "stdout")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 1.0)
	v.SetDefault("OTEL_SERVICE_NAME", "insight-compliance-api")
}

// SurveyPaths maps survey variant labels to export paths.
func (c SurveyConfig) SurveyPaths() map[string]string {
	return map[string]string{
		"1A": c.Survey1APath,
		"1B": c.Survey1BPath,
		"2A": c.Survey2APath,
		"2B": c.Survey2BPath,
		"3":  c.Survey3Path,
		"4":  c.Survey4Path,
	}
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

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}
