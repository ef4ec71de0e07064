package cli

import (
	"os"
	"path/filepath"
)

// ConfigFileName is the configuration file name inside the app directory.
const ConfigFileName = "config.yaml"

// Paths provides access to the per-user voiceguard directories.
type Paths struct {
	// AppName is the application name
	AppName string

	// BaseDir is the OS configuration directory (os.UserConfigDir)
	BaseDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		BaseDir: base,
	}, nil
}

// AppDir returns the app-specific directory (<config>/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir, p.AppName)
}

// ConfigFile returns the config file path (<config>/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), ConfigFileName)
}

// CacheDir returns the directory for on-disk result caches.
func (p *Paths) CacheDir() string {
	return filepath.Join(p.AppDir(), "cache")
}

// ModelDir returns the directory holding model bundles.
func (p *Paths) ModelDir() string {
	return filepath.Join(p.AppDir(), "models")
}

// ModelPath returns a path within the model directory
func (p *Paths) ModelPath(name string) string {
	return filepath.Join(p.ModelDir(), name)
}

// Ensure creates dir if it doesn't exist and returns it.
func Ensure(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
