// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Component-Specific Config Interfaces
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides the shared cache connection.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq queue layer.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetEmailMaxRetry() int
	GetWeeklyDigestCron() string
}

// MandrillConfig provides settings for the transactional email provider.
type MandrillConfig interface {
	GetMandrillAPIKey() string
	GetMandrillBaseURL() string
	GetMandrillRequestsPerSecond() float64
	GetMandrillWebhookKey() string
	GetMandrillWebhookURL() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMTPConfig provides settings for the SMTP development provider.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// RateLimitConfig provides outbound email ceilings. Zero disables a scope.
type RateLimitConfig interface {
	GetEmailGlobalPerMinute() int
	GetEmailUserPerMinute() int
	GetEmailEventPerMinute() int
	GetEmailUserEventPerHour() int
}

// TemplateConfig provides template catalog and cache settings.
type TemplateConfig interface {
	GetEmailTemplatesPath() string
	GetTemplateCacheTTL() time.Duration
}

// PortalConfig provides values merged into every email.
type PortalConfig interface {
	GetAppBaseURL() string
	GetSupportEmail() string
}

// EmailHealthConfig provides thresholds used by the delivery health check.
type EmailHealthConfig interface {
	GetHealthPendingThreshold() int
	GetHealthFailureThreshold() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	JWTAccessSecret           string
	CORSAllowAll              bool
	CORSOrigins               []string
	CORSAllowCreds            bool
	AppBaseURL                string
	SupportEmail              string
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	EmailMaxRetry             int
	WeeklyDigestCron          string
	EmailProvider             string
	MandrillAPIKey            string
	MandrillBaseURL           string
	MandrillRequestsPerSecond float64
	MandrillWebhookKey        string
	MandrillWebhookURL        string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUsername              string
	SMTPPassword              string
	EmailFromName             string
	EmailFromAddress          string
	EmailGlobalPerMinute      int
	EmailUserPerMinute        int
	EmailEventPerMinute       int
	EmailUserEventPerHour     int
	EmailTemplatesPath        string
	TemplateCacheTTL          time.Duration
	HealthPendingThreshold    int
	HealthFailureThreshold    int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) GetEmailMaxRetry() int       { return c.EmailMaxRetry }
func (c *Config) GetWeeklyDigestCron() string { return c.WeeklyDigestCron }

// MandrillConfig implementation
func (c *Config) GetMandrillAPIKey() string             { return c.MandrillAPIKey }
func (c *Config) GetMandrillBaseURL() string            { return c.MandrillBaseURL }
func (c *Config) GetMandrillRequestsPerSecond() float64 { return c.MandrillRequestsPerSecond }
func (c *Config) GetMandrillWebhookKey() string         { return c.MandrillWebhookKey }
func (c *Config) GetMandrillWebhookURL() string         { return c.MandrillWebhookURL }
func (c *Config) GetEmailFromName() string              { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string           { return c.EmailFromAddress }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string     { return c.SMTPHost }
func (c *Config) GetSMTPPort() int        { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string { return c.SMTPPassword }

// RateLimitConfig implementation
func (c *Config) GetEmailGlobalPerMinute() int  { return c.EmailGlobalPerMinute }
func (c *Config) GetEmailUserPerMinute() int    { return c.EmailUserPerMinute }
func (c *Config) GetEmailEventPerMinute() int   { return c.EmailEventPerMinute }
func (c *Config) GetEmailUserEventPerHour() int { return c.EmailUserEventPerHour }

// TemplateConfig implementation
func (c *Config) GetEmailTemplatesPath() string      { return c.EmailTemplatesPath }
func (c *Config) GetTemplateCacheTTL() time.Duration { return c.TemplateCacheTTL }

// PortalConfig implementation
func (c *Config) GetAppBaseURL() string   { return c.AppBaseURL }
func (c *Config) GetSupportEmail() string { return c.SupportEmail }

// EmailHealthConfig implementation
func (c *Config) GetHealthPendingThreshold() int { return c.HealthPendingThreshold }
func (c *Config) GetHealthFailureThreshold() int { return c.HealthFailureThreshold }

// UsesSMTP reports whether outbound email goes through the SMTP provider.
func (c *Config) UsesSMTP() bool {
	return strings.EqualFold(c.EmailProvider, "smtp")
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTAccessSecret:           getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		CORSAllowCreds:            strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:                getEnv("APP_BASE_URL", "http://localhost:4200"),
		SupportEmail:              getEnv("SUPPORT_EMAIL", "support@example.org"),
		RedisURL:                  getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		EmailMaxRetry:             mustInt(getEnv("EMAIL_MAX_RETRY", "5")),
		WeeklyDigestCron:          getEnv("WEEKLY_DIGEST_CRON", "0 8 * * 1"),
		EmailProvider:             getEnv("EMAIL_PROVIDER", "mandrill"),
		MandrillAPIKey:            getEnv("MANDRILL_API_KEY", ""),
		MandrillBaseURL:           getEnv("MANDRILL_BASE_URL", "https://mandrillapp.com/api/1.0"),
		MandrillRequestsPerSecond: mustFloat(getEnv("MANDRILL_REQUESTS_PER_SECOND", "10")),
		MandrillWebhookKey:        getEnv("MANDRILL_WEBHOOK_KEY", ""),
		MandrillWebhookURL:        getEnv("MANDRILL_WEBHOOK_URL", ""),
		SMTPHost:                  getEnv("SMTP_HOST", "localhost"),
		SMTPPort:                  mustInt(getEnv("SMTP_PORT", "1025")),
		SMTPUsername:              getEnv("SMTP_USERNAME", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		EmailFromName:             getEnv("EMAIL_FROM_NAME", "CapDev Portal"),
		EmailFromAddress:          getEnv("EMAIL_FROM_ADDRESS", "no-reply@example.org"),
		EmailGlobalPerMinute:      mustInt(getEnv("EMAIL_RATE_GLOBAL_PER_MINUTE", "500")),
		EmailUserPerMinute:        mustInt(getEnv("EMAIL_RATE_USER_PER_MINUTE", "10")),
		EmailEventPerMinute:       mustInt(getEnv("EMAIL_RATE_EVENT_PER_MINUTE", "200")),
		EmailUserEventPerHour:     mustInt(getEnv("EMAIL_RATE_USER_EVENT_PER_HOUR", "3")),
		EmailTemplatesPath:        getEnv("EMAIL_TEMPLATES_PATH", ""),
		TemplateCacheTTL:          mustDuration(getEnv("EMAIL_TEMPLATE_CACHE_TTL", "1h")),
		HealthPendingThreshold:    mustInt(getEnv("EMAIL_HEALTH_PENDING_THRESHOLD", "100")),
		HealthFailureThreshold:    mustInt(getEnv("EMAIL_HEALTH_FAILURE_THRESHOLD", "10")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if !cfg.UsesSMTP() && cfg.MandrillAPIKey == "" {
		return nil, fmt.Errorf("MANDRILL_API_KEY is required when EMAIL_PROVIDER is mandrill")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
