package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, InTestMode())
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 3*time.Second, cfg.QueryAwaitTimeout)
	assert.True(t, cfg.WarmupOnSignIn)
	assert.False(t, cfg.AuditEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		SessionSecret:  "s",
		CSRFSecret:     "c",
		BackendBaseURL: "http://127.0.0.1:4000/api/main",
		ScreenIdleTTL:  time.Minute,
	}
	require.NoError(t, valid.Validate())

	relative := valid
	relative.BackendBaseURL = "/api/main"
	assert.ErrorContains(t, relative.Validate(), "absolute")

	noCSRF := valid
	noCSRF.CSRFSecret = ""
	assert.Error(t, noCSRF.Validate())

	idle := valid
	idle.ScreenIdleTTL = 0
	assert.Error(t, idle.Validate())

	var unset *Config
	assert.False(t, unset.IsProduction())
	assert.False(t, unset.AuditEnabled())
}
