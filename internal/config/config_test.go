package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SMTP_HOST=smtp.example.org\nWORKER_THROTTLE=250ms\n"), 0o600))
	t.Setenv("WORKER_BATCH_SIZE", "25")
	t.Cleanup(func() {
		os.Unsetenv("SMTP_HOST")
		os.Unsetenv("WORKER_THROTTLE")
	})

	require.NoError(t, Load(path))
	c := Get()
	assert.Equal(t, "smtp.example.org", c.SMTPHost)
	assert.Equal(t, 250*time.Millisecond, c.WorkerThrottle)
	assert.Equal(t, 25, c.WorkerBatchSize)
	assert.Equal(t, 30*time.Minute, c.WorkerStaleAfter)
	assert.Equal(t, "tls", c.SMTPEncryption)
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorContains(t, err, "failed to load configuration file")
}

func TestAllowSimulated(t *testing.T) {
	cases := []struct {
		env, flag string
		want      bool
	}{
		{"dev", "auto", true},
		{EnvProduction, "auto", false},
		{EnvProduction, "true", true},
		{"dev", "false", false},
	}
	for _, tc := range cases {
		c := &Config{AppEnv: tc.env, DispatchAllowSimulated: tc.flag}
		assert.Equal(t, tc.want, c.AllowSimulated(), "%s/%s", tc.env, tc.flag)
	}
}
