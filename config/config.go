package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings holds everything read from the environment at startup.
// Components receive the pieces they need; nothing reads os.Getenv after this.
type Settings struct {
	Env  string
	Port string

	// mysql (default) or sqlite for local runs; with sqlite DBName is the file path
	DBDriver   string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int

	RedisAddress string

	APISecret          string
	TokenHourLifespan  int
	CorsAllowedOrigins []string

	LogLevel       string
	SkipMigrations bool

	PubSubProjectID        string
	PubSubCredentialsJSON  string
	BudgetAlertTopic       string
	ExtractionReviewCutoff float64
}

// LoadSettings reads .env (if present) and the process environment.
func LoadSettings() Settings {
	// Load env from .env
	_ = godotenv.Load()

	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = "8080"
	}

	return Settings{
		Env:  strings.TrimSpace(os.Getenv("GO_ENV")),
		Port: port,

		DBDriver:   strings.ToLower(getOrDefault("DB_DRIVER", "mysql")),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBName:     os.Getenv("DB_NAME"),

		DBMaxOpenConns:           intFromEnv("DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns:           intFromEnv("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeSeconds: intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300),
		DBConnMaxIdleTimeSeconds: intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60),

		RedisAddress: strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),

		APISecret:          getOrDefault("API_SECRET", "construction-backend-secret"),
		TokenHourLifespan:  intFromEnv("TOKEN_HOUR_LIFESPAN", 12),
		CorsAllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),

		LogLevel: getOrDefault("LOG_LEVEL", "info"),
		// AutoMigrate can block tables; run it as a separate job when set.
		SkipMigrations: strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true"),

		PubSubProjectID:        pubSubProjectID(),
		PubSubCredentialsJSON:  os.Getenv("PUBSUB_CREDENTIALS_JSON"),
		BudgetAlertTopic:       strings.TrimSpace(os.Getenv("BUDGET_ALERT_TOPIC")),
		ExtractionReviewCutoff: floatFromEnv("EXTRACTION_REVIEW_THRESHOLD", 0.8),
	}
}

func (s Settings) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

func pubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

func getOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
