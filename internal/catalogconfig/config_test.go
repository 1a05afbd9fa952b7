package catalogconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, "server_id: 00000000-0000-0000-0000-000000000001\n")
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.OpenFGA.MaxTuplesPerWrite)
	assert.Equal(t, 50, cfg.OpenFGA.MaxConcurrentRequests)
	assert.Equal(t, 5, cfg.MaxNamespaceDepth)
	assert.Contains(t, cfg.ReservedNamespaces, "system")
}

func TestLoadRequiresServerID(t *testing.T) {
	path := writeTestConfig(t, "max_namespace_depth: 3\n")
	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeTestConfig(t, `
server_id: 00000000-0000-0000-0000-000000000001
max_namespace_depth: 3
openfga:
  max_tuples_per_write: 50
reserved_namespaces: ["system", "internal"]
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxNamespaceDepth)
	assert.Equal(t, 50, cfg.OpenFGA.MaxTuplesPerWrite)
	assert.True(t, cfg.ReservedNamespaceSet()["internal"])
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeTestConfig(t, "server_id: 00000000-0000-0000-0000-000000000001\nmax_namespace_depth: 3\n")
	t.Setenv("CATALOGD_MAX_NAMESPACE_DEPTH", "7")
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxNamespaceDepth)
}

func TestValidateRejectsOutOfRangeBatchSize(t *testing.T) {
	cfg := Config{ServerID: "x", OpenFGA: OpenFGA{MaxTuplesPerWrite: 500, MaxConcurrentRequests: 1}, MaxNamespaceDepth: 1}
	assert.Error(t, cfg.Validate())
}

func TestWatchFileReloadsOnWrite(t *testing.T) {
	path := writeTestConfig(t, "server_id: 00000000-0000-0000-0000-000000000001\nmax_namespace_depth: 3\n")

	changes := make(chan Config, 4)
	w, err := WatchFile(path, func(c Config) { changes <- c })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("server_id: 00000000-0000-0000-0000-000000000001\nmax_namespace_depth: 9\n"), 0o600))

	select {
	case c := <-changes:
		assert.Equal(t, 9, c.MaxNamespaceDepth)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
