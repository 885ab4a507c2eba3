package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/kelseyhightower/envconfig"

	"meshvault/internal/models"
	"meshvault/internal/store"
)

const (
	DefaultBackend  = store.BackendSQLite
	DefaultLogLevel = "info"

	DefaultSQLiteIndexFileName  = ".meshvault.db"
	DefaultLevelDBIndexFileName = ".meshvault.ldb"

	configFileName = ".meshvault.toml"
	envPrefix      = "MESHVAULT"

	configDirEnvKey          = "MESHVAULT_CONFIG_DIR"
	trustProjectConfigEnvKey = "MESHVAULT_TRUST_PROJECT_CONFIG"
)

// ByteSize is a byte count that also accepts human forms such as "20MiB".
type ByteSize uint64

func ParseByteSize(raw string) (ByteSize, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return ByteSize(n), nil
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = n
	return nil
}

// Decode lets envconfig parse ByteSize values.
func (b *ByteSize) Decode(value string) error {
	return b.UnmarshalText([]byte(value))
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// ThresholdConfig holds the per-class storage file size caps.
type ThresholdConfig struct {
	Vertex  ByteSize `toml:"vertex"`
	Texture ByteSize `toml:"texture"`
}

// Config defines runtime configuration for meshvault.
type Config struct {
	IndexPath                string          `toml:"index_path"`
	BlobDir                  string          `toml:"blob_dir"`
	Backend                  string          `toml:"backend"`
	LogLevel                 string          `toml:"log_level"`
	Thresholds               ThresholdConfig `toml:"thresholds"`
	TrustedProjectConfigPath string          `toml:"-"`
}

// envOverrides mirrors the MESHVAULT_* environment variables.
type envOverrides struct {
	IndexPath        string   `envconfig:"INDEX"`
	BlobDir          string   `envconfig:"BLOB_DIR"`
	Backend          string   `envconfig:"BACKEND"`
	LogLevel         string   `envconfig:"LOG_LEVEL"`
	VertexThreshold  ByteSize `envconfig:"VERTEX_THRESHOLD"`
	TextureThreshold ByteSize `envconfig:"TEXTURE_THRESHOLD"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		Backend:  DefaultBackend,
		LogLevel: DefaultLogLevel,
		Thresholds: ThresholdConfig{
			Vertex:  ByteSize(models.DefaultVertexThreshold),
			Texture: ByteSize(models.DefaultTextureThreshold),
		},
	}
}

// Threshold returns the configured cap for class.
func (c *Config) Threshold(class models.Class) uint64 {
	if class == models.ClassTexture {
		return uint64(c.Thresholds.Texture)
	}
	return uint64(c.Thresholds.Vertex)
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"index_path",
	"blob_dir",
	"backend",
	"log_level",
	"thresholds.vertex",
	"thresholds.texture",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "index_path":
		return c.IndexPath, nil
	case "blob_dir":
		return c.BlobDir, nil
	case "backend":
		return c.Backend, nil
	case "log_level":
		return c.LogLevel, nil
	case "thresholds.vertex":
		return strconv.FormatUint(uint64(c.Thresholds.Vertex), 10), nil
	case "thresholds.texture":
		return strconv.FormatUint(uint64(c.Thresholds.Texture), 10), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.applyEnv(env)
	cfg.normalize()

	return &cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	if v := strings.TrimSpace(env.IndexPath); v != "" {
		c.IndexPath = v
	}
	if v := strings.TrimSpace(env.BlobDir); v != "" {
		c.BlobDir = v
	}
	if v := strings.TrimSpace(env.Backend); v != "" {
		c.Backend = v
	}
	if v := strings.TrimSpace(env.LogLevel); v != "" {
		c.LogLevel = v
	}
	if env.VertexThreshold > 0 {
		c.Thresholds.Vertex = env.VertexThreshold
	}
	if env.TextureThreshold > 0 {
		c.Thresholds.Texture = env.TextureThreshold
	}
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Thresholds.Vertex == 0 {
		c.Thresholds.Vertex = ByteSize(models.DefaultVertexThreshold)
	}
	if c.Thresholds.Texture == 0 {
		c.Thresholds.Texture = ByteSize(models.DefaultTextureThreshold)
	}
}

// ResolveIndexPath returns the configured index path, or the backend's
// default file name in the working directory.
func (c *Config) ResolveIndexPath() (string, error) {
	if path := strings.TrimSpace(c.IndexPath); path != "" {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultIndexFileName(c.Backend)), nil
}

// DefaultIndexFileName returns the index name used when none is configured.
func DefaultIndexFileName(backend string) string {
	if backend == store.BackendLevelDB {
		return DefaultLevelDBIndexFileName
	}
	return DefaultSQLiteIndexFileName
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Backend {
	case store.BackendSQLite, store.BackendLevelDB:
	default:
		return fmt.Errorf("backend must be %s or %s, got %q", store.BackendSQLite, store.BackendLevelDB, c.Backend)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Thresholds.Vertex == 0 || c.Thresholds.Texture == 0 {
		return fmt.Errorf("thresholds must be positive")
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "thresholds.vertex", "thresholds.texture":
		parsed, err := ParseByteSize(value)
		if err != nil || parsed == 0 || uint64(parsed) > math.MaxInt64 {
			return nil, fmt.Errorf("%s must be a positive byte size", key)
		}
		return int64(parsed), nil
	case "backend":
		switch strings.ToLower(value) {
		case store.BackendSQLite, store.BackendLevelDB:
			return strings.ToLower(value), nil
		}
		return nil, fmt.Errorf("backend must be %s or %s", store.BackendSQLite, store.BackendLevelDB)
	case "log_level":
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err != nil {
			return nil, fmt.Errorf("log_level must be debug, info, warn, or error")
		}
		return strings.ToLower(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
