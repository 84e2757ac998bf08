// Package config loads service settings from an optional file, .env and ORGGUARD_* variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "ORGGUARD"

// ErrMissingSecret is returned when no JWT signing secret is configured.
var ErrMissingSecret = errors.New("config: auth.jwt_secret is required")

type Config struct {
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	Postgres  PostgresConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Audit     AuditConfig
	CORS      CORSConfig
	Log       LogConfig
}

type HTTPConfig struct {
	Addr         string
	MaxBodyBytes int64
}

type GRPCConfig struct {
	Addr string
}

type PostgresConfig struct {
	DSN string
}

type AuthConfig struct {
	JWTSecret  string
	Issuer     string
	TokenTTL   time.Duration
	BcryptCost int
}

// RateLimitConfig holds per-minute quotas for org-scoped roles.
type RateLimitConfig struct {
	Backend     string
	OrgEmployee int
	OrgManager  int
	OrgAdmin    int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuditConfig struct {
	ElasticURL   string
	ElasticIndex string
	KafkaBrokers []string
	KafkaTopic   string
	// LogEntries also writes every entry as an "audit" log line.
	LogEntries bool
	// QueueSize bounds entries waiting for the background writer.
	QueueSize int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.max_body_bytes", int64(1<<20))
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "orgguard")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.org_employee", 60)
	v.SetDefault("ratelimit.org_manager", 120)
	v.SetDefault("ratelimit.org_admin", 240)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("audit.elastic_url", "")
	v.SetDefault("audit.elastic_index", "audit-logs")
	v.SetDefault("audit.kafka_brokers", "")
	v.SetDefault("audit.kafka_topic", "authz.audit")
	v.SetDefault("audit.log_entries", false)
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
}

// Load reads configuration. path may be empty; a missing .env file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	ttl, err := time.ParseDuration(v.GetString("auth.token_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("config: auth.token_ttl: %w", err)
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:         v.GetString("http.addr"),
			MaxBodyBytes: v.GetInt64("http.max_body_bytes"),
		},
		GRPC:     GRPCConfig{Addr: v.GetString("grpc.addr")},
		Postgres: PostgresConfig{DSN: v.GetString("postgres.dsn")},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("auth.jwt_secret"),
			Issuer:     v.GetString("auth.issuer"),
			TokenTTL:   ttl,
			BcryptCost: v.GetInt("auth.bcrypt_cost"),
		},
		RateLimit: RateLimitConfig{
			Backend:     strings.ToLower(v.GetString("ratelimit.backend")),
			OrgEmployee: v.GetInt("ratelimit.org_employee"),
			OrgManager:  v.GetInt("ratelimit.org_manager"),
			OrgAdmin:    v.GetInt("ratelimit.org_admin"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Audit: AuditConfig{
			ElasticURL:   v.GetString("audit.elastic_url"),
			ElasticIndex: v.GetString("audit.elastic_index"),
			KafkaBrokers: splitList(v.GetString("audit.kafka_brokers")),
			KafkaTopic:   v.GetString("audit.kafka_topic"),
			LogEntries:   v.GetBool("audit.log_entries"),
			QueueSize:    v.GetInt("audit.queue_size"),
		},
		CORS: CORSConfig{AllowedOrigins: splitList(v.GetString("cors.allowed_origins"))},
		Log:  LogConfig{Level: v.GetString("log.level")},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingSecret
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown ratelimit.backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.OrgEmployee <= 0 || c.RateLimit.OrgManager <= 0 || c.RateLimit.OrgAdmin <= 0 {
		return errors.New("config: ratelimit quotas must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.token_ttl must be positive")
	}
	if c.Audit.QueueSize <= 0 {
		return errors.New("config: audit.queue_size must be positive")
	}
	return nil
}

// Quotas returns per-minute request quotas keyed by role key.
func (c RateLimitConfig) Quotas() map[string]int {
	return map[string]int{
		"org_employee": c.OrgEmployee,
		"org_manager":  c.OrgManager,
		"org_admin":    c.OrgAdmin,
	}
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
