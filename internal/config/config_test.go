package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL != "http://127.0.0.1:5000" {
		t.Errorf("server url = %q", cfg.Server.URL)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if !cfg.Sound.Enabled {
		t.Error("sound should default on")
	}
	if cfg.Storage.Path == "" {
		t.Error("storage path should have a default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  url: https://dsasheet.example.com/
log:
  level: debug
sound:
  enabled: false
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL != "https://dsasheet.example.com" {
		t.Errorf("server url = %q, want trailing slash trimmed", cfg.Server.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
	if cfg.Sound.Enabled {
		t.Error("sound should be off")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("server: ["), 0o600)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:5000", "ws://127.0.0.1:5000/ws"},
		{"https://dsasheet.example.com", "wss://dsasheet.example.com/ws"},
	}
	for _, tt := range tests {
		cfg := &Config{Server: ServerConfig{URL: tt.base}}
		if got := cfg.WebsocketURL(); got != tt.want {
			t.Errorf("WebsocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
