package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigs_Defaults(t *testing.T) {
	cfg, dcfg, err := loadConfigs(t.TempDir(), "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("Data", "communes_clean.csv"), cfg.DataPath())
	assert.Equal(t, filepath.Join("Data", "regions.geojson"), cfg.GeoJSONPath())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, time.Duration(cfg.Server.ReloadInterval))
	assert.EqualValues(t, 10*1024*1024, cfg.LogMaxBytes())
	assert.Len(t, dcfg.SizeBrackets, 5)
	assert.Equal(t, 3000, dcfg.SearchLimit)
}

func TestLoadConfigs_Overrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{
		"data_dir": "/srv/data",
		"server": {"addr": ":9000", "reload_interval": "30s"}
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(`{
		"categories": {"vols de velos": "Atteintes aux biens"},
		"search_limit": 50
	}`), 0o644))

	cfg, dcfg, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, "/srv/data", cfg.DataDir)
	assert.Equal(t, "communes_clean.csv", cfg.DataFile)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Server.ReloadInterval))

	got, ok := dcfg.GetCategory("vols de velos")
	assert.True(t, ok)
	assert.Equal(t, CategoryBiens, got)
	// defaults survive a partial override
	got, ok = dcfg.GetCategory("usage de stupefiants")
	assert.True(t, ok)
	assert.Equal(t, CategoryStupefiants, got)
	assert.Equal(t, 50, dcfg.SearchLimit)
}

func TestLoadConfigs_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"server": {"reload_interval": "soon"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(`{not json`), 0o644))

	_, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析Config失败")
	assert.Contains(t, err.Error(), "解析DataConfig失败")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OBS_ADDR", "127.0.0.1:8501")
	t.Setenv("OBS_DATA_FILE", "autre.csv")

	cfg := DefaultConfig()
	ApplyEnv(cfg)

	assert.Equal(t, "127.0.0.1:8501", cfg.Server.Addr)
	assert.Equal(t, "autre.csv", cfg.DataFile)
	assert.Equal(t, "regions.geojson", cfg.GeoJSONFile)
}

func TestLogMaxBytes_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogMaxSize = "ten megs"
	assert.Zero(t, cfg.LogMaxBytes())
}
