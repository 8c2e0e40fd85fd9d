package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config конфигурация процесса. Все значения резолвятся один раз
// при старте — скрытых ленивых инициализаций в рантайме нет.
type Config struct {
	DBDSN       string
	Environment string

	// CalendarFeedURL ICS-лента внешнего календаря (чтение)
	CalendarFeedURL string
	// CalendarAPIBaseURL JSON API провайдера (запись)
	CalendarAPIBaseURL string
	CalendarAPIToken   string

	// GatewayTimeout верхняя граница одного внешнего вызова
	GatewayTimeout time.Duration
	// CacheTTL срок жизни кэша внешней ленты.
	// Старые инсталляции работали с 30s, текущий дефолт — 300s.
	CacheTTL time.Duration
	// FeedWarmInterval период фонового прогрева кэша
	FeedWarmInterval time.Duration

	// WindowMonths глубина окна сборки календаря в обе стороны от "сейчас"
	WindowMonths int
	// MaxFetchResults ограничение на размер внешней ленты за один запрос
	MaxFetchResults int

	// Location часовой пояс провайдера, общий для локальных записей
	// и внешних событий
	Location *time.Location

	MigrationsPath string
}

// Load читает конфигурацию из .env и переменных окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:              os.Getenv("DB_DSN"),
		Environment:        getEnv("ENV", "development"),
		CalendarFeedURL:    os.Getenv("CALENDAR_FEED_URL"),
		CalendarAPIBaseURL: os.Getenv("CALENDAR_API_BASE_URL"),
		CalendarAPIToken:   os.Getenv("CALENDAR_API_TOKEN"),
		GatewayTimeout:     getDuration("CALENDAR_TIMEOUT", 10*time.Second),
		CacheTTL:           getDuration("CALENDAR_CACHE_TTL", 300*time.Second),
		FeedWarmInterval:   getDuration("FEED_WARM_INTERVAL", 150*time.Second),
		WindowMonths:       getInt("CALENDAR_WINDOW_MONTHS", 6),
		MaxFetchResults:    getInt("CALENDAR_MAX_RESULTS", 250),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "migrations"),
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.CalendarFeedURL == "" {
		return nil, fmt.Errorf("CALENDAR_FEED_URL is required but not set")
	}
	if cfg.CalendarAPIBaseURL == "" {
		return nil, fmt.Errorf("CALENDAR_API_BASE_URL is required but not set")
	}

	tz := getEnv("CALENDAR_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid duration in %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid number in %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
