package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "qapi.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadExpandsEnvAndValidates(t *testing.T) {
	t.Setenv("QAPI_TEST_ENDPOINT", "wss://rpc.example.test")
	path := writeTempConfig(t, `
provider:
  name: test-node
  url: ${QAPI_TEST_ENDPOINT}
overrides:
  metadata:
    ignoreParseErrors: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.URL != "wss://rpc.example.test" {
		t.Errorf("Provider.URL = %q, want expanded env value", cfg.Provider.URL)
	}
	if !cfg.Overrides.Metadata.IgnoreParseErrors {
		t.Error("IgnoreParseErrors = false, want true")
	}
}

func TestLoadRejectsMissingURL(t *testing.T) {
	path := writeTempConfig(t, "provider:\n  name: test-node\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing provider.url")
	}
}

func TestLoadRejectsNonWebSocketScheme(t *testing.T) {
	path := writeTempConfig(t, "provider:\n  url: https://rpc.example.test\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-ws(s) scheme")
	}
}

func TestDebugReflectsEnv(t *testing.T) {
	t.Setenv("QAPI_DEBUG", "")
	if Debug() {
		t.Error("Debug() = true, want false when QAPI_DEBUG is unset/empty")
	}
	t.Setenv("QAPI_DEBUG", "1")
	if !Debug() {
		t.Error("Debug() = false, want true when QAPI_DEBUG is set")
	}
}
