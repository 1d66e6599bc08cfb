package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"time"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database settings are only required when the
// MySQL storage driver is selected.
type Config struct {
	Env           string // application environment (e.g. "dev", "prod")
	Port          string // HTTP port to listen on
	StorageDriver string // "mysql" or "memory"
	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	JWTSecret     string // secret used to sign JWTs
	AccessTTLMin  int    // access token time-to-live in minutes
	BcryptCost    int    // bcrypt cost for password hashing
	RabbitMQURL   string // broker URL; empty disables notifications
	Partner       PartnerConfig
	Scheduler     SchedulerConfig
}

// PartnerConfig locates the partner institution API used for external
// reservations.  An empty BaseURL disables external bookings.
type PartnerConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:           must("APP_ENV"),
		Port:          getenv("APP_PORT", "8080"),
		StorageDriver: getenv("STORAGE_DRIVER", StorageMySQL),
		JWTSecret:     must("JWT_SECRET"),
		AccessTTLMin:  envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:    envInt("BCRYPT_COST", 10),
		RabbitMQURL:   firstEnv("RABBITMQ_URL", "AMQP_URL"),
		Partner: PartnerConfig{
			BaseURL: os.Getenv("PARTNER_BASE_URL"),
			APIKey:  os.Getenv("PARTNER_API_KEY"),
			Timeout: envDur("PARTNER_TIMEOUT", 10*time.Second),
		},
		Scheduler: LoadScheduler(),
	}
	switch cfg.StorageDriver {
	case StorageMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case StorageMemory:
	default:
		log.Fatalf("invalid STORAGE_DRIVER: %q", cfg.StorageDriver)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
