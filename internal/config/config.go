package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App   AppConfig
	Api   ApiConfig
	Auth  AuthConfig
	Query QueryConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
}

type ApiConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type AuthConfig struct {
	Email    string
	Password string
}

type QueryConfig struct {
	Streaming   bool
	ResultLimit int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "finquery.log"),
		},
		Api: ApiConfig{
			BaseURL:        getEnv("FINQUERY_BASE_URL", "http://localhost:8000"),
			TimeoutSeconds: getEnvAsInt("FINQUERY_TIMEOUT_SECONDS", 120),
		},
		Auth: AuthConfig{
			Email:    getEnv("FINQUERY_EMAIL", ""),
			Password: getEnv("FINQUERY_PASSWORD", ""),
		},
		Query: QueryConfig{
			Streaming:   getEnvAsBool("QUERY_STREAMING", true),
			ResultLimit: getEnvAsInt("QUERY_RESULT_LIMIT", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
