package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/refman/pkg/core"
)

// ConfigFileName is the optional settings file looked up in the root directory.
const ConfigFileName = "refman.yaml"

// FileConfig mirrors refman.yaml. Pointer fields distinguish "unset" from false.
type FileConfig struct {
	SystemDir   string `yaml:"system_dir,omitempty"`
	IndexCache  *bool  `yaml:"index_cache,omitempty"`
	Versioning  *bool  `yaml:"versioning,omitempty"`
	ReadOnly    *bool  `yaml:"read_only,omitempty"`
	EventBuffer int    `yaml:"event_buffer,omitempty"`
	DefaultType string `yaml:"default_type,omitempty"`
}

// LoadConfig decodes a settings file. A missing file yields the zero FileConfig.
func LoadConfig(path string) (FileConfig, error) {
	var cfg FileConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: invalid config %s: %v", core.ErrInvalidArgument, path, err)
	}
	if cfg.DefaultType != "" {
		if _, err := core.ParseRefType(cfg.DefaultType); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ConfigPath returns the settings file used for root.
func ConfigPath(root string, opts ...Option) string {
	o := buildOptions(opts)
	return o.configPath(root)
}

func (o *options) configPath(root string) string {
	if o.configFile != "" {
		return o.configFile
	}
	return filepath.Join(root, ConfigFileName)
}

// merge fills every setting not given as an explicit option.
func (c FileConfig) merge(o *options) {
	setDefault := func(key string, v any) {
		if _, ok := o.config[key]; !ok {
			o.config[key] = v
		}
	}
	if c.SystemDir != "" {
		setDefault("system_dir", c.SystemDir)
	}
	if c.IndexCache != nil {
		setDefault("index_cache", *c.IndexCache)
	}
	if c.Versioning != nil {
		setDefault("versioning", *c.Versioning)
	}
	if c.ReadOnly != nil {
		setDefault("read_only", *c.ReadOnly)
	}
	if c.EventBuffer > 0 {
		setDefault("event_buffer", c.EventBuffer)
	}
}

// SaveConfig writes cfg as YAML, leaving unset fields out.
func SaveConfig(path string, cfg FileConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
