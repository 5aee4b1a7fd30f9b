package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration for the users service. It is built once
// at startup and passed by value into every component; nothing mutates it
// after init.
type Config struct {
	Environment   string
	Addr          string
	DatabaseURL   string
	MigrationsDir string

	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool

	// RestrictToOwnAccount scopes authenticated reads and mutations to the
	// account bound to the session. Off by default: the source system let any
	// valid session act on any account.
	RestrictToOwnAccount bool

	StoreTimeout time.Duration

	EventsRedisAddr     string
	EventsRedisPassword string
	EventsRedisDB       int
	EventStream         string
	EventGroup          string
	EventConsumer       string

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// Load constructs a Config from environment variables. DB_URL and JWT_SECRET
// keep the names the deployment already uses.
func Load() Config {
	return Config{
		Environment:          GetString("APP_ENV", "development"),
		Addr:                 GetString("API_ADDR", ":3000"),
		DatabaseURL:          GetString("DB_URL", "postgres://users:users@db:5432/users?sslmode=disable"),
		MigrationsDir:        GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:            GetString("JWT_SECRET", ""),
		SessionTTL:           time.Duration(GetInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		CookieSecure:         GetBool("COOKIE_SECURE", GetString("APP_ENV", "development") == "production"),
		RestrictToOwnAccount: GetBool("RESTRICT_TO_OWN_ACCOUNT", false),
		StoreTimeout:         time.Duration(GetInt("STORE_TIMEOUT_SECONDS", 5)) * time.Second,
		EventsRedisAddr:      GetString("EVENTS_REDIS_ADDR", ""),
		EventsRedisPassword:  GetString("EVENTS_REDIS_PASSWORD", ""),
		EventsRedisDB:        GetInt("EVENTS_REDIS_DB", 0),
		EventStream:          GetString("EVENTS_STREAM", "card.events"),
		EventGroup:           GetString("EVENTS_GROUP", "users-api"),
		EventConsumer:        GetString("EVENTS_CONSUMER", hostnameOr("users-api-1")),
		RateLimitRedisAddr:   GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:   GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:     GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}

func hostnameOr(fallback string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fallback
	}
	return host
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}
