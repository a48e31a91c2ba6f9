package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.Backend != BackendSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.Backend)
	}
	if cfg.Session.TTL != 720*time.Hour {
		t.Errorf("session ttl = %v, want 720h", cfg.Session.TTL)
	}
	if cfg.Session.RevalidateOnRestore {
		t.Error("revalidateOnRestore should default to false")
	}
	if cfg.Session.Secret != "" {
		t.Errorf("session secret = %q, want empty default", cfg.Session.Secret)
	}
	if cfg.RateLimit.Logins != 10 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("rate limit = %d per %v, want 10 per 1m", cfg.RateLimit.Logins, cfg.RateLimit.Window)
	}
	if cfg.Archive.S3.Enabled() {
		t.Error("archive should be disabled without credentials")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listacompra.yaml")
	yaml := `
port: 9090
log:
  level: debug
session:
  ttl: 24h
archive:
  s3:
    bucket: rooms
    accessKey: file-key
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LISTACOMPRA_SESSION_REVALIDATEONRESTORE", "true")
	t.Setenv("LISTACOMPRA_ARCHIVE_S3_SECRETKEY", "env-secret")
	t.Setenv("LISTACOMPRA_SESSION_SECRET", "marker-key")
	t.Setenv("LISTACOMPRA_PORT", "9191")
	t.Setenv("LISTACOMPRA_WEBSOCKET_ORIGINPATTERNS", "example.com,*.example.com")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("port = %d, want env override 9191", cfg.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("session ttl = %v, want 24h", cfg.Session.TTL)
	}
	if !cfg.Session.RevalidateOnRestore {
		t.Error("expected revalidateOnRestore from env")
	}
	if cfg.Session.Secret != "marker-key" {
		t.Errorf("session secret = %q, want env value", cfg.Session.Secret)
	}
	if !cfg.Archive.S3.Enabled() {
		t.Errorf("archive s3 = %+v, want enabled", cfg.Archive.S3)
	}
	if cfg.Archive.S3.Region != "auto" {
		t.Errorf("region = %q, want default auto", cfg.Archive.S3.Region)
	}
	if len(cfg.Websocket.OriginPatterns) != 2 || cfg.Websocket.OriginPatterns[1] != "*.example.com" {
		t.Errorf("origin patterns = %v", cfg.Websocket.OriginPatterns)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a named but missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("LISTACOMPRA_BACKEND", "firestore")
	if _, err := LoadFile(""); err == nil {
		t.Error("firestore backend without project id should fail")
	}

	t.Setenv("LISTACOMPRA_FIREBASE_PROJECTID", "lista-compra")
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Firebase.ProjectID != "lista-compra" {
		t.Errorf("project id = %q", cfg.Firebase.ProjectID)
	}

	t.Setenv("LISTACOMPRA_BACKEND", "mongo")
	if _, err := LoadFile(""); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestCanonicalizeEnvKey(t *testing.T) {
	existing := map[string]any{
		"session": map[string]any{"revalidateOnRestore": false},
		"archive": map[string]any{"s3": map[string]any{"accessKey": ""}},
	}
	tests := []struct {
		envKey string
		want   string
	}{
		{"SESSION_REVALIDATEONRESTORE", "session.revalidateOnRestore"},
		{"ARCHIVE_S3_ACCESSKEY", "archive.s3.accessKey"},
		{"NEW_FLAG", "new.flag"},
	}
	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Errorf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}
