package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.AuditCapacity)
	assert.Equal(t, 30000, cfg.RequestTimeoutMS)
	assert.Equal(t, "GOLEM_MCP_", cfg.SecretPrefix)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	const doc = `
manifestPath: /srv/golemmcp/manifest.json
auditCapacity: 500
notify:
  discord:
    enabled: true
    channelId: "12345"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/golemmcp/manifest.json", cfg.ManifestPath)
	assert.Equal(t, 500, cfg.AuditCapacity)
	assert.True(t, cfg.Notify.Discord.Enabled)
	assert.Equal(t, "12345", cfg.Notify.Discord.ChannelID)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auditCapacity: 500\n"), 0o644))

	t.Setenv("GOLEMMCP_AUDIT_CAPACITY", "999")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 999, cfg.AuditCapacity, "environment must win over the file")
}
