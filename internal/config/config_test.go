package config

import (
	"os"
	"path/filepath"
	"testing"

	"meshvault/internal/models"
)

// isolateEnv clears every variable Load reads and points HOME at an empty dir.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		configDirEnvKey,
		trustProjectConfigEnvKey,
		"MESHVAULT_INDEX",
		"MESHVAULT_BLOB_DIR",
		"MESHVAULT_BACKEND",
		"MESHVAULT_LOG_LEVEL",
		"MESHVAULT_VERTEX_THRESHOLD",
		"MESHVAULT_TEXTURE_THRESHOLD",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend != "sqlite" {
		t.Fatalf("expected sqlite backend, got %q", cfg.Backend)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.IndexPath != "" || cfg.BlobDir != "" {
		t.Fatalf("expected empty paths, got %q and %q", cfg.IndexPath, cfg.BlobDir)
	}
	if cfg.Threshold(models.ClassVertex) != 20<<20 {
		t.Fatalf("expected 20 MiB vertex threshold, got %d", cfg.Threshold(models.ClassVertex))
	}
	if cfg.Threshold(models.ClassTexture) != 1<<30 {
		t.Fatalf("expected 1 GiB texture threshold, got %d", cfg.Threshold(models.ClassTexture))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte(`index_path = "/data/assets.db"
backend = "leveldb"
log_level = "warn"

[thresholds]
vertex = "8MiB"
texture = 4096
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IndexPath != "/data/assets.db" {
		t.Fatalf("expected index_path, got %q", cfg.IndexPath)
	}
	if cfg.Backend != "leveldb" || cfg.LogLevel != "warn" {
		t.Fatalf("unexpected backend/log level %q/%q", cfg.Backend, cfg.LogLevel)
	}
	if cfg.Thresholds.Vertex != 8<<20 {
		t.Fatalf("expected 8 MiB vertex threshold, got %d", cfg.Thresholds.Vertex)
	}
	if cfg.Thresholds.Texture != 4096 {
		t.Fatalf("expected 4096 texture threshold, got %d", cfg.Thresholds.Texture)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.meshvault.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Backend != DefaultBackend {
		t.Fatalf("defaults should be preserved")
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte("[thresholds]\nvertex = \"lots\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error for invalid byte size")
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
		err  bool
	}{
		{in: "20971520", want: 20 << 20},
		{in: "20MiB", want: 20 << 20},
		{in: "1 GiB", want: 1 << 30},
		{in: "4kB", want: 4000},
		{in: "many", err: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseByteSize(tc.in)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
	if s := ByteSize(20 << 20).String(); s != "20 MiB" {
		t.Fatalf("unexpected string form %q", s)
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range []string{
		"index_path",
		"blob_dir",
		"backend",
		"log_level",
		"thresholds.vertex",
		"thresholds.texture",
	} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("invalid") {
		t.Fatal("expected 'invalid' to not be allowed")
	}
}

func TestGetKey(t *testing.T) {
	cfg := Config{
		IndexPath:  "/tmp/index.db",
		BlobDir:    "/tmp/blobs",
		Backend:    "leveldb",
		LogLevel:   "warn",
		Thresholds: ThresholdConfig{Vertex: 123, Texture: 456},
	}

	for key, want := range map[string]string{
		"index_path":         "/tmp/index.db",
		"blob_dir":           "/tmp/blobs",
		"backend":            "leveldb",
		"log_level":          "warn",
		"thresholds.vertex":  "123",
		"thresholds.texture": "456",
	} {
		val, err := cfg.Get(key)
		if err != nil || val != want {
			t.Fatalf("%s: expected %q, got %q (err: %v)", key, want, val, err)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "new.toml")
	if err := SetKey(path, "index_path", "/srv/index.db"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IndexPath != "/srv/index.db" {
		t.Fatalf("expected index path, got %q", cfg.IndexPath)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("backend = \"leveldb\"\nblob_dir = \"/keep\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "backend", "SQLite"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != "sqlite" {
		t.Fatalf("expected 'sqlite', got %q", cfg.Backend)
	}
	if cfg.BlobDir != "/keep" {
		t.Fatalf("expected preserved blob_dir '/keep', got %q", cfg.BlobDir)
	}
}

func TestSetNestedThresholdKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.toml")
	if err := SetKey(path, "thresholds.vertex", "16MiB"); err != nil {
		t.Fatalf("set vertex: %v", err)
	}
	if err := SetKey(path, "thresholds.texture", "2048"); err != nil {
		t.Fatalf("set texture: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Thresholds.Vertex != 16<<20 || cfg.Thresholds.Texture != 2048 {
		t.Fatalf("unexpected thresholds %+v", cfg.Thresholds)
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	tests := []struct{ key, value string }{
		{"invalid", "x"},
		{"backend", "bolt"},
		{"log_level", "loud"},
		{"thresholds.vertex", "0"},
		{"thresholds.texture", "huge"},
	}
	for _, tc := range tests {
		if err := SetKey(path, tc.key, tc.value); err == nil {
			t.Fatalf("expected error for %s=%q", tc.key, tc.value)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("rejected values must not create the file, stat err: %v", err)
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)

	want := filepath.Join(dir, configFileName)
	global, err := GlobalPath()
	if err != nil || global != want {
		t.Fatalf("expected global path %q, got %q (err: %v)", want, global, err)
	}
	project, err := ProjectPath()
	if err != nil || project != want {
		t.Fatalf("expected project path %q, got %q (err: %v)", want, project, err)
	}
}

func TestResolveIndexPathDefaultsToWorkingDirectory(t *testing.T) {
	isolateEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IndexPath != "" {
		t.Fatalf("expected unset index path, got %q", cfg.IndexPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	path, err := cfg.ResolveIndexPath()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(cwd, DefaultSQLiteIndexFileName); path != want {
		t.Fatalf("expected index path %q, got %q", want, path)
	}

	cfg.Backend = "leveldb"
	path, err = cfg.ResolveIndexPath()
	if err != nil {
		t.Fatalf("resolve leveldb: %v", err)
	}
	if want := filepath.Join(cwd, DefaultLevelDBIndexFileName); path != want {
		t.Fatalf("expected index path %q, got %q", want, path)
	}

	cfg.IndexPath = "/explicit.db"
	if path, _ := cfg.ResolveIndexPath(); path != "/explicit.db" {
		t.Fatalf("expected explicit path, got %q", path)
	}
}

func TestLoadConfigDirOverride(t *testing.T) {
	isolateEnv(t)
	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, configFileName), []byte("index_path = \"/from/override.db\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(configDirEnvKey, configDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IndexPath != "/from/override.db" {
		t.Fatalf("expected override config to apply, got %q", cfg.IndexPath)
	}
}

func TestEnvOverrides(t *testing.T) {
	home := isolateEnv(t)
	if err := os.WriteFile(filepath.Join(home, configFileName), []byte(`index_path = "/from/file.db"
log_level = "error"

[thresholds]
vertex = 100
`), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}

	t.Setenv("MESHVAULT_INDEX", "/from/env.db")
	t.Setenv("MESHVAULT_BLOB_DIR", "/blobs")
	t.Setenv("MESHVAULT_LOG_LEVEL", "debug")
	t.Setenv("MESHVAULT_VERTEX_THRESHOLD", "1MiB")
	t.Setenv("MESHVAULT_TEXTURE_THRESHOLD", "65536")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IndexPath != "/from/env.db" || cfg.BlobDir != "/blobs" {
		t.Fatalf("expected env paths, got %q and %q", cfg.IndexPath, cfg.BlobDir)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.LogLevel)
	}
	if cfg.Thresholds.Vertex != 1<<20 || cfg.Thresholds.Texture != 65536 {
		t.Fatalf("unexpected thresholds %+v", cfg.Thresholds)
	}
}

func TestEnvInvalidThreshold(t *testing.T) {
	isolateEnv(t)
	t.Setenv("MESHVAULT_VERTEX_THRESHOLD", "a lot")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparsable threshold")
	}
}

func TestLoadFallsBackToDefaultLogLevelWhenConfiguredEmpty(t *testing.T) {
	home := isolateEnv(t)
	if err := os.WriteFile(filepath.Join(home, configFileName), []byte("log_level = \"\"\nbackend = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Backend != DefaultBackend {
		t.Fatalf("expected default backend %q, got %q", DefaultBackend, cfg.Backend)
	}
}

func TestLoadIgnoresProjectConfigByDefault(t *testing.T) {
	home := isolateEnv(t)
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, configFileName), []byte("blob_dir = \"/home-blobs\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("blob_dir = \"/project-blobs\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	chdir(t, workspace)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BlobDir != "/home-blobs" {
		t.Fatalf("expected global blob_dir, got %q", cfg.BlobDir)
	}
	if cfg.TrustedProjectConfigPath != "" {
		t.Fatalf("expected no trusted project config path, got %q", cfg.TrustedProjectConfigPath)
	}
}

func TestLoadAppliesProjectConfigWhenTrusted(t *testing.T) {
	home := isolateEnv(t)
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, configFileName), []byte("blob_dir = \"/home-blobs\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("blob_dir = \"/project-blobs\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	chdir(t, workspace)
	t.Setenv(trustProjectConfigEnvKey, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BlobDir != "/project-blobs" {
		t.Fatalf("expected trusted project blob_dir, got %q", cfg.BlobDir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if want := filepath.Join(cwd, configFileName); cfg.TrustedProjectConfigPath != want {
		t.Fatalf("expected trusted project config path %q, got %q", want, cfg.TrustedProjectConfigPath)
	}
}

func TestLoadDoesNotTrustProjectConfigOnInvalidEnvValue(t *testing.T) {
	isolateEnv(t)
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("blob_dir = \"/project-blobs\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	chdir(t, workspace)
	t.Setenv(trustProjectConfigEnvKey, "definitely-not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BlobDir != "" {
		t.Fatalf("expected project config to be ignored, got %q", cfg.BlobDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Backend = "bolt" }},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"vertex threshold", func(c *Config) { c.Thresholds.Vertex = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
