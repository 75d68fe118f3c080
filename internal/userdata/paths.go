package userdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentx-labs/exthost/internal/branding"
)

// File and directory name constants for the home layout.
const (
	ConfigFile    = "config.yaml"
	RegistryFile  = "registry.yaml"
	SettingsFile  = "settings.db"
	ExtensionsDir = "extensions"
)

// Permission constants.
const (
	DirPermNormal os.FileMode = 0755
	DirPermSecure os.FileMode = 0700
)

// GetHomeRoot returns the exthost home directory.
// It checks the EXTHOST_HOME environment variable first,
// then falls back to ~/.exthost.
func GetHomeRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HomeDir()), nil
}

// GetConfigPath returns the path to config.yaml within the home root.
func GetConfigPath() (string, error) {
	return homeFile(ConfigFile)
}

// GetRegistryPath returns the path to the extension registry index.
// Checks EXTHOST_REGISTRY first.
func GetRegistryPath() (string, error) {
	if v := os.Getenv(branding.EnvVar("REGISTRY")); v != "" {
		return v, nil
	}
	return homeFile(RegistryFile)
}

// GetSettingsDBPath returns the path to the SQLite settings database.
// Checks EXTHOST_SETTINGS_DB first.
func GetSettingsDBPath() (string, error) {
	if v := os.Getenv(branding.EnvVar("SETTINGS_DB")); v != "" {
		return v, nil
	}
	return homeFile(SettingsFile)
}

// GetExtensionsRoot returns the directory new extensions are scaffolded into.
func GetExtensionsRoot() (string, error) {
	return homeFile(ExtensionsDir)
}

// EnsureHome creates the home root if it does not exist.
func EnsureHome() (string, error) {
	root, err := GetHomeRoot()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, DirPermSecure); err != nil {
		return "", fmt.Errorf("creating home directory %s: %w", root, err)
	}
	return root, nil
}

func homeFile(name string) (string, error) {
	root, err := GetHomeRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}
