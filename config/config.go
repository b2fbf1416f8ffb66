package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-micro/plugins/v4/config/encoder/toml"
	"go-micro.dev/v4/config"
	"go-micro.dev/v4/config/reader"
	"go-micro.dev/v4/config/reader/json"
	"go-micro.dev/v4/config/source"
	"go-micro.dev/v4/config/source/file"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "config.toml"

func loadFile(path string) (config.Config, error) {
	enc := toml.NewEncoder()
	cfg, err := config.NewConfig(config.WithReader(json.NewReader(reader.WithEncoder(enc))))
	if err != nil {
		return nil, err
	}
	err = cfg.Load(file.NewSource(
		file.WithPath(path),
		source.WithEncoder(enc),
	))
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	return cfg, nil
}

// Load reads settings from the TOML file at path. An empty path means
// config.toml in the working directory; a missing default file is not an
// error and yields built-in defaults only.
func Load(path string) (*Settings, error) {
	if path == "" {
		dir, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, DefaultFile)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return NewSettings(nil), nil
		}
	}
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	return NewSettings(cfg), nil
}
