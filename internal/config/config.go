package config

import (
	"fmt"

	pkgconfig "github.com/vodhub/auth-service/pkg/config"
)

const defaultSecretSentinel = "change-this-to-a-secure-secret"

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"AUTH_HTTP_PORT" envDefault:"8001"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"vodhub"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"vodhub_secret"`
	PostgresDB   string `env:"AUTH_DB_NAME" envDefault:"auth_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Connection pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_MINUTES" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"DB_SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT. Access and refresh tokens are signed with separate secrets so a
	// leaked access secret cannot be used to mint refresh tokens.
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry  string `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry string `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"7d"`

	// One-time codes
	OTPLength        int `env:"OTP_LENGTH" envDefault:"4"`
	OTPExpiryMinutes int `env:"OTP_EXPIRY_MINUTES" envDefault:"2"`

	// Mailer. Mode is one of "smtp", "gateway", "log".
	MailerMode     string `env:"MAILER_MODE" envDefault:"log"`
	SMTPHost       string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
	SMTPFrom       string `env:"SMTP_FROM" envDefault:"no-reply@vodhub.io"`
	MailGatewayURL string `env:"MAIL_GATEWAY_URL"`

	// Background cleanup of expired sessions and stale unverified accounts.
	CleanupIntervalMinutes int `env:"CLEANUP_INTERVAL_MINUTES" envDefault:"60"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Networks allowed to reach /debug/pprof. Empty disables profiling.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	// In non-development environments, require explicitly set, strong,
	// distinct JWT secrets.
	if cfg.Environment != "development" {
		if err := checkSecret("JWT_ACCESS_SECRET", cfg.JWTAccessSecret, cfg.Environment); err != nil {
			return nil, err
		}
		if err := checkSecret("JWT_REFRESH_SECRET", cfg.JWTRefreshSecret, cfg.Environment); err != nil {
			return nil, err
		}
		if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
			return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ in %q mode", cfg.Environment)
		}
	}

	switch cfg.MailerMode {
	case "smtp", "gateway", "log":
	default:
		return nil, fmt.Errorf("invalid MAILER_MODE %q: must be smtp, gateway, or log", cfg.MailerMode)
	}
	if cfg.MailerMode == "gateway" && cfg.MailGatewayURL == "" {
		return nil, fmt.Errorf("MAIL_GATEWAY_URL must be set when MAILER_MODE is gateway")
	}

	return cfg, nil
}

func checkSecret(name, value, environment string) error {
	if value == defaultSecretSentinel {
		return fmt.Errorf("%s must be explicitly set via environment variable in %q mode", name, environment)
	}
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters long, got %d", name, len(value))
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
