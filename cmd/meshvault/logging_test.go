package main

import (
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{name: "default info", raw: "", want: slog.LevelInfo},
		{name: "debug", raw: "debug", want: slog.LevelDebug},
		{name: "upper case", raw: "ERROR", want: slog.LevelError},
		{name: "warning alias", raw: "warning", want: slog.LevelWarn},
		{name: "numeric", raw: "-4", want: slog.LevelDebug},
		{name: "invalid", raw: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse level: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSelectedLogLevel(t *testing.T) {
	tests := []struct {
		flag, env, cfg string
		wantRaw        string
		wantSource     string
	}{
		{"debug", "error", "warn", "debug", "flag"},
		{"", "warn", "info", "warn", "env"},
		{"", " ", "error", "error", "config"},
		{"", "", "", "", "default"},
	}
	for _, tt := range tests {
		raw, source := selectedLogLevel(tt.flag, tt.env, tt.cfg)
		if raw != tt.wantRaw || source != tt.wantSource {
			t.Fatalf("selectedLogLevel(%q, %q, %q) = %q, %q", tt.flag, tt.env, tt.cfg, raw, source)
		}
	}
}

func TestConfigureLoggerForCLI(t *testing.T) {
	t.Run("flag wins over invalid env", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "chatty")
		warning, err := configureLoggerForCLI("debug", "info")
		if err != nil || warning != "" {
			t.Fatalf("expected clean configure, got warning=%q err=%v", warning, err)
		}
	})

	t.Run("invalid flag is an error", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		if _, err := configureLoggerForCLI("chatty", "info"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid env falls back", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "chatty")
		warning, err := configureLoggerForCLI("", "info")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if !strings.Contains(warning, logLevelEnvKey) || !strings.Contains(warning, "defaulting to info") {
			t.Fatalf("unexpected warning %q", warning)
		}
	})

	t.Run("invalid config falls back", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		warning, err := configureLoggerForCLI("", "chatty")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if !strings.Contains(warning, "invalid log_level") {
			t.Fatalf("unexpected warning %q", warning)
		}
	})
}
