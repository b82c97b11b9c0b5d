package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"NFCGATE_HTTP_ADDR", "NFCGATE_ENV", "NFCGATE_DB_PATH", "NFCGATE_MASTER_KEY",
		"NFCGATE_SERIAL_PORT", "NFCGATE_SERIAL_BAUD", "NFCGATE_SERIAL_ENABLED",
		"NFCGATE_SERIAL_KEYWORDS", "NFCGATE_CONNECT_ATTEMPTS", "NFCGATE_RECENT_CACHE_SIZE",
		"NFCGATE_NATS_URL", "NFCGATE_GRPC_ADDR", "LOG_LEVEL", "LOG_DEV",
	} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "./data/nfc_database.db", cfg.DBPath)
	assert.Equal(t, "34B226517F9E36", cfg.MasterKey)
	assert.Equal(t, 9600, cfg.SerialBaud)
	assert.False(t, cfg.SerialEnabled)
	assert.Equal(t, []string{"arduino", "ch340", "usb serial"}, cfg.SerialKeywords)
	assert.Equal(t, 5, cfg.ConnectAttempts)
	assert.Equal(t, 3*time.Second, cfg.ConnectPause)
	assert.Equal(t, 100, cfg.RecentCacheSize)
	assert.Equal(t, "nfcgate.scans", cfg.NATSSubject)
	assert.Empty(t, cfg.NATSURL)
	assert.True(t, cfg.LogDev)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("NFCGATE_ENV", "PROD")
	t.Setenv("NFCGATE_MASTER_KEY", " ABC ")
	t.Setenv("NFCGATE_SERIAL_ENABLED", "1")
	t.Setenv("NFCGATE_SERIAL_KEYWORDS", "FTDI, CP210x")
	t.Setenv("NFCGATE_CORS_ORIGINS", "http://a, ,http://b")
	t.Setenv("NFCGATE_CONNECT_ATTEMPTS", "-4")
	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg := FromEnv()
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "ABC", cfg.MasterKey)
	assert.True(t, cfg.SerialEnabled)
	assert.Equal(t, []string{"ftdi", "cp210x"}, cfg.SerialKeywords)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
	assert.Equal(t, 5, cfg.ConnectAttempts, "negative falls back to default")
	assert.False(t, cfg.LogDev)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestFromEnv_UnknownEnvIsDev(t *testing.T) {
	t.Setenv("NFCGATE_ENV", "staging")
	assert.Equal(t, "dev", FromEnv().Env)
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NFCGATE_HTTP_ADDR=:9999\nNFCGATE_DB_PATH=/tmp/x.db\n"), 0o600))

	t.Setenv("NFCGATE_HTTP_ADDR", ":7000")
	t.Setenv("NFCGATE_DB_PATH", "")
	require.NoError(t, os.Unsetenv("NFCGATE_DB_PATH"))

	LoadDotEnv(path)
	cfg := FromEnv()
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV("  "))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a,,b ,"))
}
