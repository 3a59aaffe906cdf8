package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[scene]
name = "harbour"
dimensions = 2
frame_rate = 60

[scene.camera]
graph = "docks"
center = [10.0, 20.0, 0.0]
half = [5.0, 5.0, 0.0]

[tree]
subdivide_threshold = 4

[database]
enabled = true
conn_max_lifetime = "10m"

[logging]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "harbour", cfg.Scene.Name)
	require.Equal(t, 2, cfg.Scene.Dimensions)
	require.Equal(t, time.Second/60, cfg.Scene.FrameInterval())
	require.Equal(t, "scenes/default.yaml", cfg.Scene.File)
	require.NotNil(t, cfg.Scene.Camera)
	require.Equal(t, "docks", cfg.Scene.Camera.Graph)
	require.Equal(t, [3]float64{10, 20, 0}, cfg.Scene.Camera.Center)
	require.Equal(t, 4, cfg.Tree.SubdivideThreshold)
	require.Equal(t, 16, cfg.Tree.MaxDepth)
	require.True(t, cfg.Database.Enabled)
	require.Equal(t, 10*time.Minute, cfg.Database.ConnMaxLifetime)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
	require.NotZero(t, cfg.Scene.StartTime)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"dimensions": "[scene]\ndimensions = 4\n",
		"threshold":  "[tree]\nsubdivide_threshold = 0\n",
		"frame rate": "[scene]\nframe_rate = 0\n",
		"syntax":     "[scene\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
