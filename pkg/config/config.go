// Package config handles run configuration for the calabash client.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mahtabnejad90/calabash/pkg/device"
	"github.com/mahtabnejad90/calabash/pkg/testserver"
)

// Config represents the workspace configuration (calabash.yaml).
type Config struct {
	// Device selection
	Serial    string `yaml:"serial"`    // Device serial, empty auto-detects
	LocalPort int    `yaml:"localPort"` // Forwarded host port

	// Application under test
	App           string `yaml:"app"`           // Package identifier
	AppFile       string `yaml:"appFile"`       // APK path
	TestServer    string `yaml:"testServer"`    // Test-server package identifier
	TestServerAPK string `yaml:"testServerApk"` // Test-server APK path
	MainActivity  string `yaml:"mainActivity"`

	// Instrumentation settings
	TestRunner string            `yaml:"testRunner"` // Runner class override
	Env        map[string]string `yaml:"env"`        // Extra instrument arguments
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromDir looks for calabash.yaml or calabash.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "calabash.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "calabash.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LocalPort == 0 {
		c.LocalPort = testserver.DefaultLocalPort
	}
}

// Application builds the Application (and associated test server) this
// configuration describes.
func (c *Config) Application() *device.Application {
	app := device.NewApplication(c.App, c.AppFile)
	if c.TestServer != "" {
		app.WithTestServer(device.NewApplication(c.TestServer, c.TestServerAPK))
	}
	return app
}

// StartOptions builds the test-server start options this configuration
// describes.
func (c *Config) StartOptions() device.StartOptions {
	return device.StartOptions{
		MainActivity: c.MainActivity,
		TestRunner:   c.TestRunner,
		Env:          c.Env,
	}
}
