package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogFormat() string
}

type mainConfig struct {
	EnvVars
	API
	Storage
	Session
}

// New returns a Config backed by environment variables and built-in defaults.
func New() Config {
	return newMainConfig(&File{})
}

// Load reads an optional YAML file and returns a Config where environment variables
// take precedence over file values, and file values over defaults.
// An empty path or a missing file yields the same result as New.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("[config.Load] read %s: %w", path, err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("[config.Load] %s: %w", path, err)
	}
	return newMainConfig(f), nil
}

// ParseFile decodes YAML config contents.
func ParseFile(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return f, nil
}

// FromFile builds a Config from already parsed file values.
func FromFile(f *File) Config {
	if f == nil {
		f = &File{}
	}
	return newMainConfig(f)
}

func newMainConfig(f *File) mainConfig {
	return mainConfig{
		EnvVars: EnvVars{file: f},
		API:     API{file: f},
		Storage: Storage{file: f},
		Session: Session{file: f},
	}
}
