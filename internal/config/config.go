package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MorawareURL     string
	MorawareUser    string
	MorawarePass    string
	MorawareBaseURL string
	UpdateJobNotes  bool

	DatabaseURL string
	RedisURL    string

	StorageURL    string
	StorageKey    string
	StorageBucket string

	PageDelay   time.Duration
	WaitTimeout time.Duration
	ReportPath  string
	MetricsPort string
	APIAddr     string
	CacheTTL    time.Duration
	LogLevel    string
}

func Load() *Config {
	// Carrega .env da raiz do projeto
	_ = godotenv.Load("../../.env")
	// Se não encontrar, tenta no diretório atual
	_ = godotenv.Load()

	morawareURL := os.Getenv("MORAWARE_URL")
	return &Config{
		MorawareURL:     morawareURL,
		MorawareUser:    os.Getenv("MORAWARE_USER"),
		MorawarePass:    os.Getenv("MORAWARE_PASS"),
		MorawareBaseURL: getEnv("MORAWARE_BASE_URL", originOf(morawareURL)),
		UpdateJobNotes:  getBool("MORAWARE_UPDATE_JOB_NOTES", true),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		StorageURL:    os.Getenv("STORAGE_URL"),
		StorageKey:    os.Getenv("STORAGE_KEY"),
		StorageBucket: getEnv("STORAGE_BUCKET", "remnant-images"),

		PageDelay:   getDuration("PAGE_DELAY", 0),
		WaitTimeout: getDuration("WAIT_TIMEOUT", 15*time.Second),
		ReportPath:  getEnv("REPORT_PATH", "last_sync_issues.json"),
		MetricsPort: os.Getenv("METRICS_PORT"),
		APIAddr:     getEnv("API_ADDR", ":3000"),
		CacheTTL:    getDuration("CACHE_TTL", 30*time.Second),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the values the sync job cannot run without.
func (c *Config) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"MORAWARE_URL":  c.MorawareURL,
		"MORAWARE_USER": c.MorawareUser,
		"MORAWARE_PASS": c.MorawarePass,
		"DATABASE_URL":  c.DatabaseURL,
		"STORAGE_URL":   c.StorageURL,
		"STORAGE_KEY":   c.StorageKey,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.MorawareBaseURL == "" {
		return errors.New("could not derive MORAWARE_BASE_URL from MORAWARE_URL")
	}
	return nil
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getBool(k string, d bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return d
	}
	return v
}

// getDuration accepts Go durations ("500ms", "2s") or plain seconds ("1.5").
func getDuration(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return d
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
