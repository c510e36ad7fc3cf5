package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withCleanEnv unsets keys for the duration of the test and restores them afterwards
func withCleanEnv(t *testing.T, keys ...string) {
	t.Helper()
	original := make(map[string]string, len(keys))
	for _, k := range keys {
		original[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
}

var envKeys = []string{
	"CLAIMS_APP_ENV",
	"CLAIMS_DATABASE_DRIVER",
	"CLAIMS_DATABASE_HOST",
	"CLAIMS_DATABASE_PORT",
	"CLAIMS_DATABASE_PASSWORD",
	"CLAIMS_DATABASE_MAX_OPEN_CONNS",
	"CLAIMS_DATABASE_MAX_IDLE_CONNS",
	"CLAIMS_MAILBOX_HOST",
	"CLAIMS_MAILBOX_DIAL_TIMEOUT",
	"CLAIMS_RECONCILIATION_LIMIT",
	"CLAIMS_RECONCILIATION_LEASE_BACKEND",
	"CLAIMS_ALERTS_TIMEZONE",
	"CLAIMS_CHANNELS_MAIL_ENABLED",
	"CLAIMS_CHANNELS_MAIL_HOST",
	"CLAIMS_CHANNELS_MAIL_FROM",
	"CLAIMS_CHANNELS_WEBHOOK_ENABLED",
	"CLAIMS_CHANNELS_WEBHOOK_URL",
	"CLAIMS_STORAGE_BACKEND",
	"CLAIMS_STORAGE_BUCKET",
	"CLAIMS_SCHEDULER_ALERTS_HOUR",
	"CLAIMS_TELEMETRY_DB_LOG_FULL_SQL",
}

func TestLoad(t *testing.T) {
	withCleanEnv(t, envKeys...)

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "claimsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "claimsync", cfg.Database.DBName)
		assert.Equal(t, 993, cfg.Mailbox.Port)
		assert.Equal(t, "INBOX", cfg.Mailbox.Folder)
		assert.Equal(t, 30*time.Second, cfg.Mailbox.DialTimeout)
		assert.Equal(t, []string{"RESPUESTA SINIESTRO"}, cfg.Reconciliation.BrokerKeywords)
		assert.Equal(t, []string{"recibo"}, cfg.Reconciliation.ReceiptKeywords)
		assert.Equal(t, 50, cfg.Reconciliation.Limit)
		assert.Equal(t, "memory", cfg.Reconciliation.LeaseBackend)
		assert.Equal(t, "America/Guayaquil", cfg.Alerts.Timezone)
		assert.Equal(t, 48*time.Hour, cfg.Alerts.InsurerResponseWindow)
		assert.Equal(t, 24*time.Hour, cfg.Alerts.DepositWindow)
		assert.Equal(t, "local", cfg.Storage.Backend)
		assert.Equal(t, 7, cfg.Scheduler.AlertsHour)
		assert.False(t, cfg.Channels.Mail.Enabled)
	})

	t.Run("loads values from environment variables with CLAIMS prefix", func(t *testing.T) {
		t.Setenv("CLAIMS_DATABASE_DRIVER", "sqlite")
		t.Setenv("CLAIMS_MAILBOX_HOST", "imap.example.com")
		t.Setenv("CLAIMS_MAILBOX_DIAL_TIMEOUT", "5s")
		t.Setenv("CLAIMS_RECONCILIATION_LIMIT", "10")
		t.Setenv("CLAIMS_ALERTS_TIMEZONE", "UTC")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "claimsync.db", cfg.Database.DSN())
		assert.Equal(t, "imap.example.com", cfg.Mailbox.Host)
		assert.Equal(t, 5*time.Second, cfg.Mailbox.DialTimeout)
		assert.Equal(t, 10, cfg.Reconciliation.Limit)

		loc, err := cfg.Alerts.Location()
		require.NoError(t, err)
		assert.Equal(t, time.UTC, loc)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		t.Setenv("CLAIMS_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("CLAIMS_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("CLAIMS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown time zone", func(t *testing.T) {
		t.Setenv("CLAIMS_ALERTS_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alerts.timezone")
	})

	t.Run("rejects unknown lease backend", func(t *testing.T) {
		t.Setenv("CLAIMS_RECONCILIATION_LEASE_BACKEND", "etcd")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lease_backend")
	})

	t.Run("s3 storage requires a bucket", func(t *testing.T) {
		t.Setenv("CLAIMS_STORAGE_BACKEND", "s3")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")

		t.Setenv("CLAIMS_STORAGE_BUCKET", "receipts")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "receipts", cfg.Storage.Bucket)
	})

	t.Run("validates alert hour", func(t *testing.T) {
		t.Setenv("CLAIMS_SCHEDULER_ALERTS_HOUR", "24")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alerts_hour")
	})
}

func TestLoad_ChannelValidation(t *testing.T) {
	withCleanEnv(t, envKeys...)

	t.Run("enabled mail channel needs host and sender", func(t *testing.T) {
		t.Setenv("CLAIMS_CHANNELS_MAIL_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channels.mail")
	})

	t.Run("enabled mail channel with settings passes", func(t *testing.T) {
		t.Setenv("CLAIMS_CHANNELS_MAIL_ENABLED", "true")
		t.Setenv("CLAIMS_CHANNELS_MAIL_HOST", "smtp.example.com")
		t.Setenv("CLAIMS_CHANNELS_MAIL_FROM", "alertas@example.com")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Channels.Mail.Enabled)
		assert.Equal(t, 587, cfg.Channels.Mail.Port)
	})

	t.Run("webhook url must be a url", func(t *testing.T) {
		t.Setenv("CLAIMS_CHANNELS_WEBHOOK_ENABLED", "true")
		t.Setenv("CLAIMS_CHANNELS_WEBHOOK_URL", "not a url")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channels.webhook")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	withCleanEnv(t, envKeys...)

	t.Run("requires database.password in production", func(t *testing.T) {
		t.Setenv("CLAIMS_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		t.Setenv("CLAIMS_APP_ENV", "production")
		t.Setenv("CLAIMS_DATABASE_PASSWORD", "secure-password")
		t.Setenv("CLAIMS_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		t.Setenv("CLAIMS_APP_ENV", "production")
		t.Setenv("CLAIMS_DATABASE_PASSWORD", "secure-password")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestLoadFile(t *testing.T) {
	withCleanEnv(t, envKeys...)

	dir := t.TempDir()
	path := filepath.Join(dir, "claimsync.toml")
	content := `
[mailbox]
host = "imap.example.com"
username = "siniestros@example.com"
password = "secret"

[reconciliation]
broker_keywords = ["RESPUESTA SINIESTRO", "RE: SINIESTRO"]
limit = 5

[alerts]
timezone = "UTC"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com", cfg.Mailbox.Host)
	assert.Equal(t, []string{"RESPUESTA SINIESTRO", "RE: SINIESTRO"}, cfg.Reconciliation.BrokerKeywords)
	assert.Equal(t, 5, cfg.Reconciliation.Limit)
	assert.NoError(t, cfg.Mailbox.Validate())

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("CLAIMS_MAILBOX_HOST", "other.example.com")
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "other.example.com", cfg.Mailbox.Host)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.toml"))
		assert.Error(t, err)
	})
}

func TestMailboxConfig_Validate(t *testing.T) {
	cfg := MailboxConfig{Port: 993, Folder: "INBOX", DialTimeout: time.Second, CommandTimeout: time.Second}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mailbox configuration")

	cfg.Host, cfg.Username, cfg.Password = "imap.example.com", "user", "pass"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})

	t.Run("sqlite uses the path", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
		assert.Equal(t, ":memory:", cfg.DSN())
	})
}
