package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string

	// RedisAddr enables the distributed tenant merge lock when set; empty
	// falls back to the in-process locker.
	RedisAddr     string
	RedisPassword string

	LogLevel  string
	LogFormat string

	UploadsDir string

	// AutoMergeExact lets ingestion merge EXACT email matches without
	// review. Off by default: everything goes through the queue.
	AutoMergeExact bool

	// ScanCron schedules the nightly full-tenant duplicate scan; empty
	// disables it.
	ScanCron  string
	ScanLimit int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	return &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Port:           getEnv("PORT", "8080"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		UploadsDir:     getEnv("UPLOADS_DIR", "./uploads"),
		AutoMergeExact: getEnvBool("AUTO_MERGE_EXACT", false),
		ScanCron:       os.Getenv("SCAN_CRON"),
		ScanLimit:      getEnvInt("SCAN_LIMIT", 500),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
