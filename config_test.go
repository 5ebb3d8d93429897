package norm_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/norm"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, ".norm.yaml", `
uri: bolt://localhost:7687
username: neo4j
password: secret
database: movies
`)

	cfg, err := norm.LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://localhost:7687", cfg.URI)
	assert.Equal(t, "neo4j", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "movies", cfg.Database)
}

func TestFindConfigWalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nested := filepath.Join(root, "services", "api")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	expected := writeConfig(t, root, ".norm.yaml", "uri: bolt://localhost:7687\n")

	found, err := norm.FindConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, expected, found)
}

func TestFindConfigNearestWins(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nested := filepath.Join(root, "api")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	writeConfig(t, root, ".norm.yaml", "uri: bolt://outer:7687\n")
	writeConfig(t, nested, ".norm.yaml", "uri: bolt://inner:7687\n")

	cfg, err := norm.LoadConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, "bolt://inner:7687", cfg.URI)
}

func TestFindConfigNotFound(t *testing.T) {
	t.Parallel()

	_, err := norm.FindConfig(t.TempDir())
	require.ErrorIs(t, err, norm.ErrConfigNotFound)
}

func TestAuthToken(t *testing.T) {
	t.Parallel()

	withUser := &norm.Config{Username: "neo4j", Password: "secret"}
	assert.NotEqual(t, (&norm.Config{}).AuthToken(), withUser.AuthToken())
}
