package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	ModelServiceURL string
	CORSOrigins     string

	// Настройки пайплайна
	FrameInterval        time.Duration
	MaxPredictionTime    time.Duration
	PoolSize             int
	IdleTimeout          time.Duration
	AlertThreshold       float64
	PersistenceThreshold float64
	FallbackHeuristic    bool

	MaxMessageSizeMB int
	LogLevel         string
	Environment      string

	DBName     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// DSNForLog безопасный вывод DSN без пароля для логирования
func (c *Config) DSNForLog() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBSSLMode)
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

func LoadConfig() *Config {
	// Загрузка .env файла (если существует)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ModelServiceURL: getEnv("MODEL_SERVICE_URL", "localhost:9000"),
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),

		FrameInterval:        secondsEnv("FRAME_INTERVAL", 2.0),
		MaxPredictionTime:    secondsEnv("MAX_PREDICTION_TIME", 25.0),
		PoolSize:             getEnvInt("POOL_SIZE", 2),
		IdleTimeout:          secondsEnv("IDLE_TIMEOUT", 60.0),
		AlertThreshold:       getEnvFloat("ALERT_THRESHOLD", 0.7),
		PersistenceThreshold: getEnvFloat("PERSISTENCE_THRESHOLD", 0.0),
		FallbackHeuristic:    getEnvBool("FALLBACK_HEURISTIC", false),

		MaxMessageSizeMB: getEnvInt("MAX_MESSAGE_SIZE_MB", 50),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		Environment:      getEnv("ENVIRONMENT", "production"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "accident_detector"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Проверка обязательных полей
	if cfg.DBPassword == "" {
		fmt.Println("WARNING: DB_PASSWORD is not set!")
	}
	if cfg.PoolSize < 1 {
		fmt.Println("WARNING: POOL_SIZE must be >= 1, using 1")
		cfg.PoolSize = 1
	}

	return cfg
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// secondsEnv читает значение в секундах (дробное) и переводит в Duration.
func secondsEnv(key string, defaultSeconds float64) time.Duration {
	return time.Duration(getEnvFloat(key, defaultSeconds) * float64(time.Second))
}
