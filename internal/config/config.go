// Package config loads lockprof's configuration from a YAML file with
// environment-variable overrides: load file, apply defaults, apply
// environment overrides, validate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"lockprof/pkg/errors"
)

// Config is lockprof's full runtime configuration.
type Config struct {
	Tracer   TracerConfig   `yaml:"tracer"`
	Dump     DumpConfig     `yaml:"dump"`
	Timeline TimelineConfig `yaml:"timeline"`
	Server   ServerConfig   `yaml:"server"`
}

// TracerConfig controls the event tracer's hot-path behavior.
type TracerConfig struct {
	ShardCount         int      `yaml:"shard_count"`
	MaxStackDepth      int      `yaml:"max_stack_depth"`
	FrameDenylist      []string `yaml:"frame_denylist"`
	MaxInternedHandles int64    `yaml:"max_interned_handles"`
}

// DumpConfig controls where and how the .pclprof file is written.
type DumpConfig struct {
	Path string `yaml:"path"`
	Gzip bool   `yaml:"gzip"`
}

// TimelineConfig controls the HTML swimlane renderer.
type TimelineConfig struct {
	OutputPath      string `yaml:"output_path"`
	PixelsPerSecond int    `yaml:"pixels_per_second"`
}

// ServerConfig controls the demo HTTP server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoadConfig loads configFile (if non-empty), applies defaults for any
// unset field, applies environment-variable overrides, then validates
// the result.
func LoadConfig(configFile string) (*Config, error) {
	config := &Config{}

	if configFile != "" {
		if err := loadConfigFile(configFile, config); err != nil {
			fmt.Printf("Warning: failed to load config file %s: %v\n", configFile, err)
		} else {
			fmt.Printf("Loaded configuration from file: %s\n", configFile)
		}
	}

	applyDefaults(config)
	applyEnvironmentOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, errors.ConfigError("LoadConfig", err.Error()).Wrap(err)
	}
	return config, nil
}

func loadConfigFile(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyDefaults fills in every field LoadConfig left at its zero value.
func applyDefaults(config *Config) {
	if config.Tracer.ShardCount == 0 {
		config.Tracer.ShardCount = 64
	}
	if config.Tracer.MaxStackDepth == 0 {
		config.Tracer.MaxStackDepth = 32
	}
	if len(config.Tracer.FrameDenylist) == 0 {
		config.Tracer.FrameDenylist = []string{"runtime.*", "lockprof/pkg/tracedlock.*"}
	}
	if config.Tracer.MaxInternedHandles == 0 {
		config.Tracer.MaxInternedHandles = 10_000_000
	}
	if config.Dump.Path == "" {
		config.Dump.Path = defaultDumpPath()
	}
	if config.Timeline.OutputPath == "" {
		config.Timeline.OutputPath = "timeline.html"
	}
	if config.Timeline.PixelsPerSecond == 0 {
		config.Timeline.PixelsPerSecond = 100
	}
	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8090
	}
}

func defaultDumpPath() string {
	if v := os.Getenv("PC_LINE_PROFILER_STATS_FILENAME"); v != "" {
		return v
	}
	return filepath.Base(os.Args[0]) + ".pclprof"
}

// applyEnvironmentOverrides lets environment variables win over both
// the file and the defaults.
func applyEnvironmentOverrides(config *Config) {
	config.Tracer.ShardCount = getEnvInt("LOCKPROF_SHARD_COUNT", config.Tracer.ShardCount)
	config.Tracer.MaxStackDepth = getEnvInt("LOCKPROF_MAX_STACK_DEPTH", config.Tracer.MaxStackDepth)
	config.Tracer.MaxInternedHandles = getEnvInt64("LOCKPROF_MAX_INTERNED_HANDLES", config.Tracer.MaxInternedHandles)
	config.Dump.Path = getEnvString("PC_LINE_PROFILER_STATS_FILENAME", config.Dump.Path)
	config.Dump.Gzip = getEnvBool("LOCKPROF_DUMP_GZIP", config.Dump.Gzip)
	config.Timeline.OutputPath = getEnvString("LOCKPROF_TIMELINE_PATH", config.Timeline.OutputPath)
	config.Timeline.PixelsPerSecond = getEnvInt("LOCKPROF_TIMELINE_PX_PER_SEC", config.Timeline.PixelsPerSecond)
	config.Server.Host = getEnvString("LOCKPROF_SERVER_HOST", config.Server.Host)
	config.Server.Port = getEnvInt("LOCKPROF_SERVER_PORT", config.Server.Port)
	config.Server.Enabled = getEnvBool("LOCKPROF_SERVER_ENABLED", config.Server.Enabled)
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// ConfigValidator accumulates validation errors across the whole
// config tree before reporting.
type ConfigValidator struct {
	config *Config
	errs   []string
}

// ValidateConfig checks config for invalid values.
func ValidateConfig(config *Config) error {
	v := &ConfigValidator{config: config}
	v.validateTracer()
	v.validateDump()
	v.validateTimeline()
	v.validateServer()
	return v.buildError()
}

func (v *ConfigValidator) addError(component, message string) {
	v.errs = append(v.errs, fmt.Sprintf("%s: %s", component, message))
}

func (v *ConfigValidator) validateTracer() {
	t := v.config.Tracer
	if t.ShardCount <= 0 {
		v.addError("tracer", "shard_count must be positive")
	}
	if t.MaxStackDepth <= 0 {
		v.addError("tracer", "max_stack_depth must be positive")
	}
	if t.MaxInternedHandles <= 0 {
		v.addError("tracer", "max_interned_handles must be positive")
	}
}

func (v *ConfigValidator) validateDump() {
	if v.config.Dump.Path == "" {
		v.addError("dump", "path must not be empty")
	}
}

func (v *ConfigValidator) validateTimeline() {
	if v.config.Timeline.PixelsPerSecond <= 0 {
		v.addError("timeline", "pixels_per_second must be positive")
	}
}

func (v *ConfigValidator) validateServer() {
	if !v.config.Server.Enabled {
		return
	}
	if v.config.Server.Port <= 0 || v.config.Server.Port > 65535 {
		v.addError("server", "port must be between 1 and 65535")
	}
}

func (v *ConfigValidator) buildError() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(v.errs, "; "))
}
