package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/recapcut/internal/config"
)

func TestInitConfig_WritesDefaultsOnce(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "secret-key")
	path := filepath.Join("conf", "recapcut.yaml")

	require.Equal(t, 0, Execute([]string{"--config", path, "init-config"}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-key")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Render, cfg.Render)

	assert.Equal(t, 1, Execute([]string{"--config", path, "init-config"}), "existing file is kept")
	assert.Equal(t, 0, Execute([]string{"--config", path, "init-config", "--force"}))
}
