package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeder.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[discord]
token = "Bot abc"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, DefaultMessageLimit, cfg.Scan.MessageLimit)
	assert.Equal(t, DefaultJoinDelaySec, cfg.Scan.JoinDelaySec)
	assert.Equal(t, DefaultGuildDelaySec, cfg.Scan.GuildDelaySec)
	assert.True(t, cfg.Scan.EnrichURLs)
	assert.True(t, cfg.AIL.VerifyCert)
	assert.False(t, cfg.AIL.Enabled)
}

func TestLoadFull(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[log]
level = "debug"
format = "json"

[discord]
token = "Bot abc"

[ail]
enabled = true
url = "https://ail.local:7009"
api_key = "secret"
feeder_uuid = "3c273ab6-5a83-4f4c-b27a-43edc2f0a31b"
verify_cert = false

[scan]
message_limit = 200
download_media = true
enrich_urls = false
join_delay_seconds = 30
invite_codes = ["abc123", "def456"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "https://ail.local:7009", cfg.AIL.URL)
	assert.Equal(t, "3c273ab6-5a83-4f4c-b27a-43edc2f0a31b", cfg.AIL.FeederUUID)
	assert.False(t, cfg.AIL.VerifyCert)
	assert.Equal(t, 200, cfg.Scan.MessageLimit)
	assert.True(t, cfg.Scan.DownloadMedia)
	assert.False(t, cfg.Scan.EnrichURLs)
	assert.Equal(t, 30, cfg.Scan.JoinDelaySec)
	assert.Equal(t, []string{"abc123", "def456"}, cfg.Scan.InviteCodes)
}

func TestLoadGeneratesFeederUUID(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[discord]
token = "Bot abc"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	_, parseErr := uuid.Parse(cfg.AIL.FeederUUID)
	assert.NoError(t, parseErr, "missing feeder_uuid gets generated")
}

func TestLoadMissingToken(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[scan]
message_limit = 10
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token")
}

func TestLoadEnabledAILNeedsCredentials(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[discord]
token = "Bot abc"

[ail]
enabled = true
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadInvalidUUID(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[discord]
token = "Bot abc"

[ail]
feeder_uuid = "not-a-uuid"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uuid")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadMalformedTOML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `[discord`))
	require.Error(t, err)
}
