package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const testToml = `
BOT_NAME = "books"
MEMUSAGE_ENABLED = true
MEMUSAGE_LIMIT_MB = 2048
MEMUSAGE_WARNING_MB = 1024
MEMUSAGE_CHECK_INTERVAL_SECONDS = 0.5
MEMUSAGE_NOTIFY_MAIL = ["ops@example.com", "dev@example.com"]
STATUS_PORT = [7000, 7010]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	s, err := Load(writeConfig(t, testToml))
	require.NoError(t, err)

	assert.Equal(t, "books", s.String("BOT_NAME"))
	assert.True(t, s.Bool("MEMUSAGE_ENABLED"))
	assert.Equal(t, 2048, s.Int("MEMUSAGE_LIMIT_MB"))
	assert.Equal(t, 1024, s.Int("MEMUSAGE_WARNING_MB"))
	assert.Equal(t, 500*time.Millisecond, s.Seconds("MEMUSAGE_CHECK_INTERVAL_SECONDS"))
	assert.Equal(t, []string{"ops@example.com", "dev@example.com"}, s.StringList("MEMUSAGE_NOTIFY_MAIL"))
	assert.Equal(t, []int{7000, 7010}, s.IntList("STATUS_PORT"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	s := NewSettings(nil)

	assert.Equal(t, "crawlrt", s.String("BOT_NAME"))
	assert.Equal(t, "adapter", s.String("REACTOR"))
	assert.True(t, s.Bool("MEMUSAGE_ENABLED"))
	assert.Equal(t, 0, s.Int("MEMUSAGE_LIMIT_MB"))
	assert.Equal(t, time.Minute, s.Seconds("MEMUSAGE_CHECK_INTERVAL_SECONDS"))
	assert.Empty(t, s.StringList("MEMUSAGE_NOTIFY_MAIL"))
	assert.Equal(t, []int{6023, 6073}, s.IntList("STATUS_PORT"))
	assert.Equal(t, "", s.String("UNKNOWN_KEY"))
}

func TestOverrides(t *testing.T) {
	s, err := Load(writeConfig(t, testToml))
	require.NoError(t, err)

	require.NoError(t, s.SetPair("MEMUSAGE_LIMIT_MB=10"))
	require.NoError(t, s.SetPair("MEMUSAGE_ENABLED = 0"))
	require.NoError(t, s.SetPair("MEMUSAGE_NOTIFY_MAIL=a@x.org, b@x.org"))
	require.NoError(t, s.SetPair("STATUS_PORT=8000"))

	assert.Equal(t, 10, s.Int("MEMUSAGE_LIMIT_MB"))
	assert.False(t, s.Bool("MEMUSAGE_ENABLED"))
	assert.Equal(t, []string{"a@x.org", "b@x.org"}, s.StringList("MEMUSAGE_NOTIFY_MAIL"))
	assert.Equal(t, []int{8000}, s.IntList("STATUS_PORT"))

	err = s.SetPair("garbage")
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		overrides []string
		wantErrs  int
	}{
		{name: "defaults", wantErrs: 0},
		{
			name:      "bad interval",
			overrides: []string{"MEMUSAGE_CHECK_INTERVAL_SECONDS=0"},
			wantErrs:  1,
		},
		{
			name:      "interval ignored when disabled",
			overrides: []string{"MEMUSAGE_ENABLED=false", "MEMUSAGE_CHECK_INTERVAL_SECONDS=0"},
			wantErrs:  0,
		},
		{
			name: "everything wrong",
			overrides: []string{
				"MEMUSAGE_CHECK_INTERVAL_SECONDS=-1",
				"MEMUSAGE_LIMIT_MB=-5",
				"MEMUSAGE_WARNING_MB=-5",
				"STATUS_PORT=1,2,3",
			},
			wantErrs: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSettings(nil)
			for _, o := range tt.overrides {
				require.NoError(t, s.SetPair(o))
			}
			err := s.Validate()
			assert.Len(t, multierr.Errors(err), tt.wantErrs)
		})
	}
}

func TestNotConfigured(t *testing.T) {
	err := NotConfigured("MEMUSAGE_ENABLED is off")
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.Contains(t, err.Error(), "MEMUSAGE_ENABLED")
}
