package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/haruspex-cli/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	assert.Equal(t, "outputModel", c.OutputModelPrefix)
	assert.Equal(t, "outputData.csv", c.OutputData)
	assert.Equal(t, 3, c.KMeans.DefaultClusters)
	assert.Equal(t, 50, c.KMeans.MaxIterations)
	assert.Equal(t, "none", c.PCA.Normalization)
	assert.Equal(t, "full", c.PCA.Basis)
}

func TestLoadWithoutFile(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
	// loading must not create the config directory
	_, err = os.Stat(filepath.Join(home, ".haruspex"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte("output_data: fromfile.csv\nkmeans:\n  default_clusters: 4\n  tolerance: 0.5\n"), 0o644))
	t.Setenv("HARUSPEX_KMEANS_DEFAULT_CLUSTERS", "7")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "fromfile.csv", c.OutputData)
	assert.Equal(t, 7, c.KMeans.DefaultClusters)
	assert.Equal(t, 0.5, c.KMeans.Tolerance)
	assert.Equal(t, 50, c.KMeans.MaxIterations)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("HARUSPEX_PCA_BASIS=fixed-size\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("HARUSPEX_PCA_BASIS") })

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fixed-size", c.PCA.Basis)
}

func TestLoadBrokenFile(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte("kmeans: [unclosed\n"), 0o644))
	_, err := Load(p)
	assert.ErrorContains(t, err, "read config")
}

func TestSaveRoundTrip(t *testing.T) {
	home := isolate(t)
	c := Defaults()
	c.XLSXSheet = "Data"
	c.PCA.BasisEnergy = 0.75
	require.NoError(t, Save(c, ""))

	_, err := os.Stat(filepath.Join(home, ".haruspex", "config.yaml"))
	require.NoError(t, err)
	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestEngineSettings(t *testing.T) {
	s, err := Defaults().EngineSettings()
	require.NoError(t, err)
	assert.Equal(t, 3, s.KMeans.DefaultClusters)
	assert.Equal(t, engine.NormalizeNone, s.PCA.Normalization)
	assert.Equal(t, engine.BasisFull, s.PCA.Basis)

	c := Defaults()
	c.KMeans.DefaultClusters = 0
	_, err = c.EngineSettings()
	assert.ErrorContains(t, err, "kmeans.default_clusters")

	c = Defaults()
	c.PCA.Normalization = "rows"
	_, err = c.EngineSettings()
	assert.ErrorContains(t, err, "invalid pca normalization")
}
