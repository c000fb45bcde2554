// Package config provides the typed, YAML-loadable configuration for the
// RDA streaming client: buffer sizing, network endpoint, timeouts and
// diagnostics.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Network     NetworkConfig     `json:"network" yaml:"network"`
	Buffer      BufferConfig      `json:"buffer" yaml:"buffer"`
	Diagnostics DiagnosticsConfig `json:"diagnostics" yaml:"diagnostics"`
}

// NetworkConfig describes how to reach the RDA server.
type NetworkConfig struct {
	Address          string        `json:"address" yaml:"address"`
	DialTimeout      time.Duration `json:"dialTimeout" yaml:"dialTimeout"`
	HandshakeTimeout time.Duration `json:"handshakeTimeout" yaml:"handshakeTimeout"`
}

// BufferConfig describes the ring's sizing.
type BufferConfig struct {
	// Capacity is the number of rows retained in the data section.
	Capacity int `json:"capacity" yaml:"capacity"`
	// PocketCapacity is the number of rows mirrored in the pocket section.
	PocketCapacity int `json:"pocketCapacity" yaml:"pocketCapacity"`
	// MaxRegionSize is a human-friendly byte budget ("64MB") that clamps
	// Capacity once nChannels is known at handshake time.
	MaxRegionSize datasize.ByteSize `json:"maxRegionSize" yaml:"maxRegionSize"`
}

// DiagnosticsConfig controls ambient observability.
type DiagnosticsConfig struct {
	EnableDebug     bool   `json:"enableDebug" yaml:"enableDebug"`
	EnableBroadcast bool   `json:"enableBroadcast" yaml:"enableBroadcast"`
	ListenAddress   string `json:"listenAddress" yaml:"listenAddress"`
	SaveTimelog     bool   `json:"saveTimelog" yaml:"saveTimelog"`
}

// DefaultConfig returns hardcoded, ready-to-run defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Address:          "127.0.0.1:51244",
			DialTimeout:      5 * time.Second,
			HandshakeTimeout: 5 * time.Second,
		},
		Buffer: BufferConfig{
			Capacity:       10000,
			PocketCapacity: 500,
			MaxRegionSize:  64 * datasize.MB,
		},
		Diagnostics: DiagnosticsConfig{
			EnableDebug:     false,
			EnableBroadcast: false,
			ListenAddress:   "127.0.0.1:8765",
			SaveTimelog:     false,
		},
	}
}

// LoadConfig reads a YAML file at path, applying its values over
// DefaultConfig so a partial file only overrides what it names.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ClampCapacity reduces c.Buffer.Capacity so that Capacity rows of nChannels
// float32 samples fit within MaxRegionSize, if the configured capacity would
// exceed the byte budget. PocketCapacity is then clamped to Capacity.
func (c *Config) ClampCapacity(nChannels int) {
	const sampleSize = 4 // float32
	if nChannels < 1 {
		nChannels = 1
	}

	maxRows := int(uint64(c.Buffer.MaxRegionSize) / uint64(nChannels*sampleSize))
	if maxRows < 1 {
		maxRows = 1
	}
	if c.Buffer.Capacity > maxRows {
		c.Buffer.Capacity = maxRows
	}
	if c.Buffer.PocketCapacity > c.Buffer.Capacity {
		c.Buffer.PocketCapacity = c.Buffer.Capacity
	}
}
