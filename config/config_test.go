package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, "auth_token", cfg.Session.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/forms.db")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("JWT_EXPIRATION", "90m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/forms.db", cfg.Database.Path)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, 90*time.Minute, cfg.JWT.Expiration)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		setenv  map[string]string
		wantErr string
	}{
		{
			name:    "unknown driver",
			setenv:  map[string]string{"DB_DRIVER": "mysql"},
			wantErr: "unknown DB_DRIVER",
		},
		{
			name:    "unknown session store",
			setenv:  map[string]string{"SESSION_STORE": "memcached"},
			wantErr: "unknown SESSION_STORE",
		},
		{
			name:    "default secret in production",
			setenv:  map[string]string{"APP_ENV": "production"},
			wantErr: "JWT_SECRET must be set",
		},
		{
			name:    "non-positive expiration",
			setenv:  map[string]string{"JWT_EXPIRATION": "0s"},
			wantErr: "JWT_EXPIRATION must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.setenv {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProductionWithSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cr3t")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
