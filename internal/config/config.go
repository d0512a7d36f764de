package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server (本地地图页面宿主)
	ServerPort string
	Debug      bool

	// 后端 API
	APIBaseURL         string
	TrackingAPIBaseURL string
	ClientIdentifier   string

	// 本地存储
	DBPath string

	// Polling
	PollInterval time.Duration

	// 轨迹缓冲
	TrackBufferSize int

	// 地图默认视角
	MapCenterLat float64
	MapCenterLon float64
	MapZoom      int
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("APP_PORT", "4100"),
		Debug:              getEnvBool("DEBUG", false),
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:3002"),
		TrackingAPIBaseURL: getEnv("TRACKING_API_BASE_URL", "http://localhost:3003"),
		ClientIdentifier:   getEnv("CLIENT_IDENTIFIER", "com.tracetrip.app"),
		DBPath:             getEnv("DB_PATH", "fleetgazer.db"),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 5*time.Second),
		TrackBufferSize:    getEnvInt("TRACK_BUFFER_SIZE", 100),
		MapCenterLat:       getEnvFloat("MAP_CENTER_LAT", -23.5505),
		MapCenterLon:       getEnvFloat("MAP_CENTER_LON", -46.6333),
		MapZoom:            getEnvInt("MAP_ZOOM", 15),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.Atoi(value)
		if err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
