package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix scopes the environment variables the loader binds, e.g.
// VOICEMEMO_PIPELINE_CROSSFADE -> pipeline.crossfade.
const EnvPrefix = "VOICEMEMO"

// FileSystem abstracts file lookups so tests can fake them.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	UserConfigDir() (string, error)
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (RealFileSystem) LoadEnv(path string) error { return godotenv.Load(path) }

func (RealFileSystem) UserConfigDir() (string, error) { return os.UserConfigDir() }

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// ResolvedFiles contains the config and env files the loader will read.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// Resolve returns the files LoadConfig would read for appName.
// Explicit paths win; otherwise the working directory is searched first,
// then the user config directory (e.g. ~/.config/voicememo).
func Resolve(appName string, lc LoaderConfig) ResolvedFiles {
	if lc.FileSystem == nil {
		lc.FileSystem = RealFileSystem{}
	}
	files := ResolvedFiles{ConfigFile: lc.ConfigFile, EnvFile: lc.EnvFile}

	dirs := []string{".", "./config"}
	if ucd, err := lc.FileSystem.UserConfigDir(); err == nil && ucd != "" {
		dirs = append(dirs, filepath.Join(ucd, appName))
	}

	if files.ConfigFile == "" {
		files.ConfigFile = firstExisting(lc.FileSystem, dirs, "config.yml", "config.yaml")
	}
	if files.EnvFile == "" {
		files.EnvFile = firstExisting(lc.FileSystem, dirs, ".env."+appName, ".env")
	}
	return files
}

func firstExisting(fs FileSystem, dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			p := filepath.Join(dir, name)
			if fs.Exists(p) {
				return p
			}
		}
	}
	return ""
}

// LoadConfig reads configuration for appName into cfg.
// Order of precedence, lowest first: config.yml, .env file, process environment.
func LoadConfig(appName string, cfg interface{}, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}
	files := Resolve(appName, lc)

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", files.ConfigFile, err)
		}
	}

	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", files.EnvFile, err)
		}
	}
	bindEnv(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config for %s: %w", appName, err)
	}
	return nil
}

// bindEnv sets every prefixed variable under all plausible nested keys.
// Section names may themselves contain underscores (max_backups), so the
// split point between section and key is ambiguous; viper ignores the
// variants that do not match a struct field.
func bindEnv(v *viper.Viper, environ []string) {
	prefix := EnvPrefix + "_"
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		for _, variant := range keyVariants(strings.TrimPrefix(key, prefix)) {
			v.Set(variant, value)
		}
	}
}

// keyVariants expands PIPELINE_CROSSFADE_MS into
// [pipeline_crossfade_ms, pipeline.crossfade_ms, pipeline.crossfade.ms, pipeline_crossfade.ms].
func keyVariants(envKey string) []string {
	parts := strings.Split(strings.ToLower(envKey), "_")
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add(strings.Join(parts, "_"))
	add(strings.Join(parts, "."))
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], "_") + "." + strings.Join(parts[i:], "_"))
		add(strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_"))
	}
	return out
}
