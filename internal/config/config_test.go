package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
		check     func(t *testing.T, cfg *Config)
	}{
		{
			name:     "full config",
			filePath: "testdata/full.yaml",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, StoreRedis, cfg.Store.Driver)
				assert.Equal(t, "s3cret", cfg.Database.Password)
				assert.True(t, cfg.Database.Migrate)
				assert.Equal(t, "cache.internal:6380", cfg.Redis.Addr)
				assert.Equal(t, 2, cfg.Redis.DB)
				assert.True(t, cfg.RabbitMQ.Enabled)
				assert.Equal(t, 587, cfg.Email.Port)
				assert.Equal(t, 10*time.Second, cfg.Gumroad.Timeout)
				assert.Equal(t, 4, cfg.Gumroad.MaxPages)
				assert.Equal(t, 5, cfg.Gumroad.Retry.MaxAttempts)
				assert.Equal(t, "https://ghe.example.com/api/v3/", cfg.GitHub.BaseURL)
				assert.Equal(t, "127.0.0.1:9090", cfg.Admin.Addr)
				assert.Equal(t, 2*time.Minute, cfg.Sync.CycleTimeout)
				assert.Equal(t, []int{404, 422}, cfg.Sync.GiveUpStatuses)
				assert.Equal(t, []string{"github", "git"}, cfg.Sync.UsernameKeywords)
				assert.True(t, cfg.Sync.SortFieldKeys)
				assert.Equal(t, 15, cfg.Settings.PollingIntervalMinutes)
				assert.Equal(t, "console", cfg.Logging.Format)
			},
		},
		{
			name:     "defaults",
			filePath: "testdata/minimal.yaml",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, StorePostgres, cfg.Store.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "sale_inviter:", cfg.Redis.KeyPrefix)
				assert.False(t, cfg.RabbitMQ.Enabled)
				assert.Equal(t, "sale_inviter", cfg.RabbitMQ.Exchange)
				assert.False(t, cfg.Email.Enabled)
				assert.Equal(t, "https://api.gumroad.com/v2", cfg.Gumroad.BaseURL)
				assert.Equal(t, 10, cfg.Gumroad.MaxPages)
				assert.Equal(t, 3, cfg.Gumroad.Retry.MaxAttempts)
				assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
				assert.Equal(t, ":8080", cfg.Admin.Addr)
				assert.Equal(t, 5*time.Minute, cfg.Sync.CycleTimeout)
				assert.Empty(t, cfg.Sync.GiveUpStatuses)
				assert.Equal(t, "acme", cfg.Settings.GitHubOwner)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "read config file",
		},
		{
			name:      "unknown store driver",
			filePath:  "testdata/invalid.yaml",
			wantErr:   true,
			errString: "Driver",
		},
		{
			name:      "email enabled without recipients",
			filePath:  "testdata/bad_email.yaml",
			wantErr:   true,
			errString: "From",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.setDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "Level"},
		{name: "zero max pages", mutate: func(c *Config) { c.Gumroad.MaxPages = -1 }, wantErr: "MaxPages"},
		{name: "give up on success status", mutate: func(c *Config) { c.Sync.GiveUpStatuses = []int{201} }, wantErr: "GiveUpStatuses"},
		{name: "blank keyword", mutate: func(c *Config) { c.Sync.UsernameKeywords = []string{""} }, wantErr: "UsernameKeywords"},
		{name: "negative seed interval", mutate: func(c *Config) { c.Settings.PollingIntervalMinutes = -5 }, wantErr: "PollingIntervalMinutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "sales", SSLMode: "disable"}

	assert.Equal(t, "postgres://u:p%40ss@db:5432/sales?sslmode=disable", d.URL())
	assert.Equal(t, "host=db port=5432 user=u password=p@ss dbname=sales sslmode=disable", d.DSN())
}
