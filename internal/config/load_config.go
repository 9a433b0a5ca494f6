package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawConfig mirrors Config with pointer fields so that missing keys can be
// told apart from zero values.
type rawConfig struct {
	Server  *string `json:"server" yaml:"server"`
	Port    *uint32 `json:"port" yaml:"port"`
	Version *string `json:"version" yaml:"version"`
	Dir     *string `json:"dir" yaml:"dir"`
	Project *string `json:"project" yaml:"project"`
	Profile *string `json:"profile" yaml:"profile"`
	Auth    *string `json:"auth" yaml:"auth"`
}

// isYAML reports whether the path should be (de)serialized as YAML instead of JSON.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the pull configuration at path.
// A file that cannot be read yields an error wrapping ErrNotFound; a file that
// does not decode, or that misses a required key, yields one wrapping ErrFormat.
// Every key except "version" is required.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	cfg, err := Parse(data, isYAML(path))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document. Unknown keys are ignored.
func Parse(data []byte, asYAML bool) (Config, error) {
	var raw rawConfig
	if asYAML {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, err
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil {
			return Config{}, err
		}
		// Reject trailing garbage after the object.
		if dec.More() {
			return Config{}, fmt.Errorf("unexpected data after configuration object")
		}
	}

	var missing []string
	cfg := Config{}
	str := func(name string, p *string, dst *string) {
		if p == nil {
			missing = append(missing, name)
			return
		}
		*dst = *p
	}
	str("server", raw.Server, &cfg.Server)
	if raw.Port == nil {
		missing = append(missing, "port")
	} else {
		cfg.Port = *raw.Port
	}
	if raw.Version != nil {
		cfg.Version = *raw.Version
	}
	str("dir", raw.Dir, &cfg.Dir)
	str("project", raw.Project, &cfg.Project)
	str("profile", raw.Profile, &cfg.Profile)
	str("auth", raw.Auth, &cfg.Auth)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing field(s): %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// Marshal encodes cfg for the file at path: indented JSON, or YAML for
// .yaml/.yml paths.
func Marshal(cfg Config, path string) ([]byte, error) {
	if isYAML(path) {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteDefault writes Default() to path, replacing any existing file.
// It returns the configuration it wrote.
func WriteDefault(path string) (Config, error) {
	cfg := Default()
	data, err := Marshal(cfg, path)
	if err != nil {
		return Config{}, err
	}
	// Write with mode 0644 (read/write owner, read others)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Config{}, fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return cfg, nil
}
