package userdata

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHomeRoot_EnvOverride(t *testing.T) {
	t.Setenv("EXTHOST_HOME", "/tmp/test-exthost")
	root, err := GetHomeRoot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != "/tmp/test-exthost" {
		t.Errorf("expected /tmp/test-exthost, got %s", root)
	}
}

func TestGetHomeRoot_Default(t *testing.T) {
	t.Setenv("EXTHOST_HOME", "")
	root, err := GetHomeRoot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".exthost")
	if root != expected {
		t.Errorf("expected %s, got %s", expected, root)
	}
}

func TestHomeFiles(t *testing.T) {
	t.Setenv("EXTHOST_HOME", "/tmp/eh")
	t.Setenv("EXTHOST_REGISTRY", "")
	t.Setenv("EXTHOST_SETTINGS_DB", "")

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"config", GetConfigPath, "/tmp/eh/config.yaml"},
		{"registry", GetRegistryPath, "/tmp/eh/registry.yaml"},
		{"settings", GetSettingsDBPath, "/tmp/eh/settings.db"},
		{"extensions", GetExtensionsRoot, "/tmp/eh/extensions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestGetRegistryPath_EnvOverride(t *testing.T) {
	t.Setenv("EXTHOST_REGISTRY", "/srv/registry.yaml")
	got, err := GetRegistryPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/srv/registry.yaml" {
		t.Errorf("expected /srv/registry.yaml, got %s", got)
	}
}

func TestEnsureHome(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "home")
	t.Setenv("EXTHOST_HOME", dir)

	got, err := EnsureHome()
	if err != nil {
		t.Fatalf("EnsureHome() error = %v", err)
	}
	info, err := os.Stat(got)
	if err != nil {
		t.Fatalf("home not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", got)
	}
}
