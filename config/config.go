package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from the environment (optionally via .env) with simple defaults.
type Config struct {
	ServerAddr string

	PythonPath         string // Interpreter used for the analysis scripts
	ProcessScript      string // Source-separation + chord-extraction script
	RegenerateScript   string // Chord re-extraction script (per stem)
	ProcessTimeout     time.Duration
	RegenerateTimeout  time.Duration
	UploadDir          string // Raw uploaded audio files
	ProcessedDir       string // Per-upload output: stems, waveforms, chords.json
	MaxUploadSizeBytes int64

	// 同步轮询间隔（和弦同步会话）
	SyncPollInterval time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置（上传原始文件的持久备份）
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		PythonPath:         getEnv("PYTHON_PATH", filepath.Join("venv", "bin", "python3")),
		ProcessScript:      getEnv("PROCESS_SCRIPT", "process_audio.py"),
		RegenerateScript:   getEnv("REGENERATE_SCRIPT", "regenerate_chords.py"),
		ProcessTimeout:     time.Duration(getEnvInt("PROCESS_TIMEOUT_SECONDS", 1800)) * time.Second,
		RegenerateTimeout:  time.Duration(getEnvInt("REGENERATE_TIMEOUT_SECONDS", 300)) * time.Second,
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		ProcessedDir:       getEnv("PROCESSED_DIR", "processed"),
		MaxUploadSizeBytes: int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,

		SyncPollInterval: time.Duration(getEnvInt("SYNC_POLL_INTERVAL_MS", 100)) * time.Millisecond,

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "musichelper"),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "musichelper"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}
}
