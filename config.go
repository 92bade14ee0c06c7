package framejob

import (
	"time"

	"golang.org/x/xerrors"
)

// Config contains configuration.
type Config struct {
	// Concurrency is the number of worker Goroutines in the job pool.
	//
	// Defaults to 5.
	Concurrency int

	// FrameInterval is the time between ticks of the frame loop.
	//
	// Defaults to 16ms.
	FrameInterval time.Duration

	// Log specifies a logger to use.
	//
	// Defaults to an instance of Logger running at informational level.
	Log LoggerInterface

	// Port is the port to serve job status and events over HTTP on. Zero
	// disables the status server.
	Port int

	// RecentTTL is how long finished jobs are remembered for the purpose of
	// status reporting.
	//
	// Defaults to 5 minutes.
	RecentTTL time.Duration

	// RefreshInterval is the interval used by periodic routines that read it
	// from the context's config.
	//
	// Defaults to 1 second.
	RefreshInterval time.Duration
}

// FileConfig is the representation of Config in a TOML or YAML file.
// Durations are strings like "16ms" or "1s".
type FileConfig struct {
	Concurrency     int    `toml:"concurrency" yaml:"concurrency"`
	FrameInterval   string `toml:"frame_interval" yaml:"frame_interval"`
	LogLevel        string `toml:"log_level" yaml:"log_level"`
	Port            int    `toml:"port" yaml:"port"`
	RecentTTL       string `toml:"recent_ttl" yaml:"recent_ttl"`
	RefreshInterval string `toml:"refresh_interval" yaml:"refresh_interval"`
}

// Config converts a file configuration into a Config with defaults filled in.
func (fc *FileConfig) Config() (*Config, error) {
	level, err := ParseLevel(fc.LogLevel)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Concurrency: fc.Concurrency,
		Log:         &Logger{Level: level},
		Port:        fc.Port,
	}

	durations := []struct {
		name   string
		source string
		target *time.Duration
	}{
		{"frame_interval", fc.FrameInterval, &config.FrameInterval},
		{"recent_ttl", fc.RecentTTL, &config.RecentTTL},
		{"refresh_interval", fc.RefreshInterval, &config.RefreshInterval},
	}

	for _, d := range durations {
		if d.source == "" {
			continue
		}

		*d.target, err = time.ParseDuration(d.source)
		if err != nil {
			return nil, xerrors.Errorf("error parsing '%s': %w", d.name, err)
		}
	}

	fillDefaults(config)
	return config, nil
}

//
// Private
//

func fillDefaults(config *Config) {
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}

	if config.FrameInterval <= 0 {
		config.FrameInterval = 16 * time.Millisecond
	}

	if config.Log == nil {
		config.Log = &Logger{Level: LevelInfo}
	}

	if config.RecentTTL <= 0 {
		config.RecentTTL = 5 * time.Minute
	}

	if config.RefreshInterval <= 0 {
		config.RefreshInterval = time.Second
	}
}
