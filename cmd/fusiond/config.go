package main

import (
	"fmt"
	"io/ioutil"

	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"
)

// Config is the YAML service configuration.
type Config struct {
	Port        int    `yaml:"port"`
	StorageRoot string `yaml:"storage_root"`

	// ResamplerCommand is the full invocation prefix of the external
	// resampling helper, e.g. ["python3", "/opt/fusion/resample_helper.py"].
	ResamplerCommand []string `yaml:"resampler_command"`

	// DefaultInterpolation applies when a manifest request does not name one.
	DefaultInterpolation string `yaml:"default_interpolation"`

	// IncludePrimary asks the helper to return the primary slice and a blend
	// alongside each resampled secondary slice.
	IncludePrimary bool `yaml:"include_primary"`
}

func LoadConfig(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	cfg := &Config{Port: 9019}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, pfx.Err(err)
	}

	if cfg.StorageRoot == "" {
		return nil, pfx.Err(fmt.Errorf("config %s: storage_root is required", path))
	}

	return cfg, nil
}
