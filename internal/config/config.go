// Package config loads service configuration from an optional TOML file,
// with environment variable overrides applied on top.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Transcode holds the ceilings applied to the decoder's output. The
// container, codec, and latency flags are fixed; only the knobs that
// trade quality against bandwidth are configurable.
type Transcode struct {
	Resolution string `toml:"resolution"`
	Bitrate    string `toml:"bitrate"`
	FrameRate  int    `toml:"frame_rate"`
}

// Config is the full service configuration.
type Config struct {
	APIAddr          string    `toml:"api_addr"`
	FFmpegPath       string    `toml:"ffmpeg_path"`
	ChunkSize        int       `toml:"chunk_size"`
	SubscriberBuffer int       `toml:"subscriber_buffer"`
	Transcode        Transcode `toml:"transcode"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		APIAddr:          ":8088",
		ChunkSize:        32 * 1024,
		SubscriberBuffer: 100,
		Transcode: Transcode{
			Resolution: "640x480",
			Bitrate:    "1000k",
			FrameRate:  25,
		},
	}
}

// Load reads the TOML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.ChunkSize <= 0 {
		return cfg, fmt.Errorf("config: chunk_size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.SubscriberBuffer <= 0 {
		return cfg, fmt.Errorf("config: subscriber_buffer must be positive, got %d", cfg.SubscriberBuffer)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EROXII_API_ADDR"); v != "" {
		c.APIAddr = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		c.FFmpegPath = v
	}
}
