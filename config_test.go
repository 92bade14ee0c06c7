package framejob

import (
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
)

func TestFillDefaults(t *testing.T) {
	config := &Config{}
	fillDefaults(config)

	assert.Equal(t, 5, config.Concurrency)
	assert.Equal(t, 16*time.Millisecond, config.FrameInterval)
	assert.Equal(t, 5*time.Minute, config.RecentTTL)
	assert.Equal(t, time.Second, config.RefreshInterval)
	assert.Equal(t, 0, config.Port)
	assert.NotNil(t, config.Log)
}

func TestFileConfig(t *testing.T) {
	fc := &FileConfig{
		Concurrency:     3,
		FrameInterval:   "10ms",
		LogLevel:        "debug",
		RefreshInterval: "250ms",
	}

	config, err := fc.Config()
	assert.NoError(t, err)

	assert.Equal(t, 3, config.Concurrency)
	assert.Equal(t, 10*time.Millisecond, config.FrameInterval)
	assert.Equal(t, 250*time.Millisecond, config.RefreshInterval)
	assert.Equal(t, 5*time.Minute, config.RecentTTL)
	assert.Equal(t, &Logger{Level: LevelDebug}, config.Log)
}

func TestFileConfig_BadDuration(t *testing.T) {
	_, err := (&FileConfig{FrameInterval: "often"}).Config()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "frame_interval")
}

func TestFileConfig_BadLevel(t *testing.T) {
	_, err := (&FileConfig{LogLevel: "loud"}).Config()
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for s, expected := range map[string]Level{
		"":        LevelInfo,
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
	} {
		level, err := ParseLevel(s)
		assert.NoError(t, err)
		assert.Equal(t, expected, level, "level %q", s)
	}
}
