package engine

import (
	"os"
	"strconv"

	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

// Config is a module's flattened configuration: scalar keys as strings plus
// the raw YAML node for modules that need the nested tree (strategy node
// lists).
type Config struct {
	Values map[string]string
	Raw    *yaml.Node
}

// String returns the value for key, or def when absent.
func (c Config) String(key, def string) string {
	if v, ok := c.Values[key]; ok {
		return v
	}
	return def
}

// Int returns the value for key parsed as int, or def.
func (c Config) Int(key string, def int) int {
	if v, ok := c.Values[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Uint64 returns the value for key parsed as uint64, or def.
func (c Config) Uint64(key string, def uint64) uint64 {
	if v, ok := c.Values[key]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// Float returns the value for key parsed as float64, or def.
func (c Config) Float(key string, def float64) float64 {
	if v, ok := c.Values[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the value for key parsed as bool, or def.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c.Values[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// PluginConfig is one entry of the config file's plugins list.
type PluginConfig struct {
	Name    string    `yaml:"name"`
	Enabled *bool     `yaml:"enabled"`
	Config  yaml.Node `yaml:"config"`
}

// TradingHours holds the engine's session times. End is the run loop's
// cutoff; Start is only logged, the loop does not wait for it. Times are
// HH:MM:SS strings compared lexically against the local clock.
type TradingHours struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// SnapshotConfig selects the market snapshot backing at boot.
type SnapshotConfig struct {
	Type     string `yaml:"type"` // local | shm
	Path     string `yaml:"path"`
	IsWriter *bool  `yaml:"is_writer"`
}

// ProfilingConfig enables continuous profiling when present.
type ProfilingConfig struct {
	ServerAddress   string `yaml:"server_address"`
	ApplicationName string `yaml:"application_name"`
}

// FileConfig mirrors the engine's YAML config layout.
type FileConfig struct {
	Symbols      string           `yaml:"symbols"`
	NodeID       uint32           `yaml:"node_id"`
	Plugins      []PluginConfig   `yaml:"plugins"`
	TradingHours *TradingHours    `yaml:"trading_hours"`
	Snapshot     *SnapshotConfig  `yaml:"snapshot"`
	Profiling    *ProfilingConfig `yaml:"profiling"`
}

// LoadFileConfig reads and parses an engine config file.
func LoadFileConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// flatten extracts scalar key/value pairs from a plugin's config mapping and
// keeps the raw node for nested consumers.
func flatten(node yaml.Node) Config {
	cfg := Config{Values: make(map[string]string)}
	if node.Kind == 0 {
		return cfg
	}
	raw := node
	cfg.Raw = &raw
	if node.Kind != yaml.MappingNode {
		return cfg
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind == yaml.ScalarNode && v.Kind == yaml.ScalarNode {
			cfg.Values[k.Value] = v.Value
		}
	}
	return cfg
}
