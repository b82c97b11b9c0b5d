package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/nfc_database.db"

	MasterKey string

	// Reader
	SerialEnabled   bool
	SerialPort      string // empty = auto-discover
	SerialBaud      int
	SerialKeywords  []string
	SerialFallback  string
	ConnectAttempts int
	ConnectPause    time.Duration

	// Recent journal cache
	RecentCacheSize    int
	CacheResyncMinutes int // 0 = sync at startup only

	// HTTP extras
	RateLimit   int // requests per minute per IP on /nfc, 0 = off
	CORSOrigins []string

	// Optional integrations, empty disables
	NATSURL     string
	NATSToken   string
	NATSSubject string
	GRPCAddr    string

	LogLevel string
	LogDev   bool
}

// LoadDotEnv reads a .env file into the environment if one exists. Values
// already set in the environment win.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("NFCGATE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	logDev := getenvBool("LOG_DEV", env == "dev")
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
		if logDev {
			logLevel = "debug"
		}
	}

	keywords := splitCSV(getenvDefault("NFCGATE_SERIAL_KEYWORDS", "arduino,ch340,usb serial"))
	for i, k := range keywords {
		keywords[i] = strings.ToLower(k)
	}

	attempts := getenvInt("NFCGATE_CONNECT_ATTEMPTS", 5)
	if attempts == 0 {
		attempts = 1
	}

	cacheSize := getenvInt("NFCGATE_RECENT_CACHE_SIZE", 100)
	if cacheSize == 0 {
		cacheSize = 100
	}

	return Config{
		HTTPAddr: getenvDefault("NFCGATE_HTTP_ADDR", ":8000"),
		Env:      env,
		DBPath:   getenvDefault("NFCGATE_DB_PATH", "./data/nfc_database.db"),

		MasterKey: strings.TrimSpace(getenvDefault("NFCGATE_MASTER_KEY", "34B226517F9E36")),

		SerialEnabled:   getenvBool("NFCGATE_SERIAL_ENABLED", false),
		SerialPort:      strings.TrimSpace(os.Getenv("NFCGATE_SERIAL_PORT")),
		SerialBaud:      getenvInt("NFCGATE_SERIAL_BAUD", 9600),
		SerialKeywords:  keywords,
		SerialFallback:  getenvDefault("NFCGATE_SERIAL_FALLBACK", "COM3"),
		ConnectAttempts: attempts,
		ConnectPause:    time.Duration(getenvInt("NFCGATE_CONNECT_PAUSE_SECONDS", 3)) * time.Second,

		RecentCacheSize:    cacheSize,
		CacheResyncMinutes: getenvInt("NFCGATE_CACHE_RESYNC_MINUTES", 10),

		RateLimit:   getenvInt("NFCGATE_RATE_LIMIT", 0),
		CORSOrigins: splitCSV(os.Getenv("NFCGATE_CORS_ORIGINS")),

		NATSURL:     strings.TrimSpace(os.Getenv("NFCGATE_NATS_URL")),
		NATSToken:   os.Getenv("NFCGATE_NATS_TOKEN"),
		NATSSubject: getenvDefault("NFCGATE_NATS_SUBJECT", "nfcgate.scans"),
		GRPCAddr:    strings.TrimSpace(os.Getenv("NFCGATE_GRPC_ADDR")),

		LogLevel: logLevel,
		LogDev:   logDev,
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
