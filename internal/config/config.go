package config

import (
	"time"

	"github.com/joho/godotenv"

	"pmsync/internal/util"
)

// Config gathers every setting both binaries read from the environment.
type Config struct {
	Environment string
	LogLevel    string

	// Endpoint the client syncs with.
	EndpointURL    string
	APIKey         string
	UseAPIKey      bool
	RequestTimeout time.Duration
	RetryInterval  time.Duration
	MaxAttempts    int

	// Session persistence. RedisURL wins over SessionFile when set.
	SessionFile string
	RedisURL    string
	SessionTTL  time.Duration

	// Endpoint server.
	ServerAddr     string
	DBPath         string
	ServerAPIKey   string
	AllowedOrigins []string
}

// Load reads .env files when present and then the process environment.
// Missing files are not an error.
func Load(files ...string) *Config {
	_ = godotenv.Load(files...)

	return &Config{
		Environment: util.EnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    util.EnvOrDefault("LOG_LEVEL", "info"),

		EndpointURL:    util.FirstEnv("", "PMSYNC_ENDPOINT_URL", "VITE_APPS_SCRIPT_URL"),
		APIKey:         util.FirstEnv("", "PMSYNC_API_KEY", "VITE_API_KEY"),
		UseAPIKey:      util.EnvBool("PMSYNC_USE_API_KEY", util.EnvBool("VITE_USE_API_KEY", false)),
		RequestTimeout: util.EnvDuration("PMSYNC_TIMEOUT", 30*time.Second),
		RetryInterval:  util.EnvDuration("PMSYNC_RETRY_INTERVAL", 30*time.Second),
		MaxAttempts:    util.EnvInt("PMSYNC_MAX_ATTEMPTS", 5),

		SessionFile: util.EnvOrDefault("PMSYNC_SESSION_FILE", ".pmsync/session.json"),
		RedisURL:    util.EnvOrDefault("REDIS_URL", ""),
		SessionTTL:  util.EnvDuration("PMSYNC_SESSION_TTL", 0),

		ServerAddr:     util.EnvOrDefault("PMSERVER_ADDR", ":8080"),
		DBPath:         util.EnvOrDefault("PMSERVER_DB_PATH", "data/pmsync.db"),
		ServerAPIKey:   util.EnvOrDefault("PMSERVER_API_KEY", ""),
		AllowedOrigins: util.SplitList(util.EnvOrDefault("PMSERVER_ALLOWED_ORIGINS", "*")),
	}
}
