package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	JWTSecret     string
	MongoURI      string
	DBName        string
	SkipAuth      bool
	Environment   string
	AppId         string
	PublicBaseURL string // Used to build share URLs
	CORSOrigins   string

	SessionCookie string
	SessionTTL    time.Duration

	RedisAddr       string // Empty disables the history cache
	RedisPassword   string
	RedisDB         int
	HistoryCacheTTL time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:          getEnv("DB_NAME", "go-kpi"),
		SkipAuth:        getEnv("SKIP_AUTH", "false") == "true",
		Environment:     getEnv("ENVIRONMENT", "development"),
		AppId:           getEnv("APP_ID", "go-kpi"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000, http://localhost:5173"),
		SessionCookie:   getEnv("SESSION_COOKIE", "kpi_session"),
		SessionTTL:      getDuration("SESSION_TTL", 72*time.Hour),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getInt("REDIS_DB", 0),
		HistoryCacheTTL: getDuration("HISTORY_CACHE_TTL", time.Minute),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}
