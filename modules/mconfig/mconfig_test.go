package mconfig

import (
	"os"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/brandur/framejob"
	"github.com/brandur/framejob/modules/mtesting"
)

func TestLoadFileTOML(t *testing.T) {
	path := mtesting.WriteTempFileExt(t, ".toml", []byte(`
concurrency = 2
frame_interval = "5ms"
log_level = "warn"
`))
	defer os.Remove(path)

	config, err := LoadFile(mtesting.NewLogger(), path)
	assert.NoError(t, err)

	assert.Equal(t, 2, config.Concurrency)
	assert.Equal(t, 5*time.Millisecond, config.FrameInterval)
	assert.Equal(t, time.Second, config.RefreshInterval)
	assert.Equal(t, &framejob.Logger{Level: framejob.LevelWarn}, config.Log)
}

func TestLoadFileYAML(t *testing.T) {
	path := mtesting.WriteTempFileExt(t, ".yml", []byte(`
refresh_interval: 2s
recent_ttl: 1m
`))
	defer os.Remove(path)

	config, err := LoadFile(mtesting.NewLogger(), path)
	assert.NoError(t, err)

	assert.Equal(t, 5, config.Concurrency)
	assert.Equal(t, 2*time.Second, config.RefreshInterval)
	assert.Equal(t, time.Minute, config.RecentTTL)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	path := mtesting.WriteTempFileExt(t, ".json", []byte(`{}`))
	defer os.Remove(path)

	_, err := LoadFile(mtesting.NewLogger(), path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config extension")
}

func TestLoader(t *testing.T) {
	path := mtesting.WriteTempFileExt(t, ".toml", []byte(`refresh_interval = "3s"`))
	defer os.Remove(path)

	c := mtesting.NewContext()
	config, err := Loader(c.Log)(path)
	assert.NoError(t, err)
	assert.Equal(t, 3*time.Second, config.RefreshInterval)
}
