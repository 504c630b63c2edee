// Package config resolves the runtime settings of doccode.
//
// Settings come from, in increasing priority: built-in defaults, a .env
// file, DOCCODE_* environment variables and command-line flags. Flags are
// applied by the caller after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvFile         = "DOCCODE_FILE"
	EnvHost         = "DOCCODE_HOST"
	EnvPort         = "DOCCODE_PORT"
	EnvOpenBrowser  = "DOCCODE_OPEN_BROWSER"
	EnvBrowserDelay = "DOCCODE_BROWSER_DELAY"
	EnvCatalog      = "DOCCODE_CATALOG"
	EnvLogLevel     = "DOCCODE_LOG_LEVEL"
	EnvLogDev       = "DOCCODE_LOG_DEV"
)

// DefaultEnvFile is the dotenv file read when no other is given.
const DefaultEnvFile = ".env"

// Config holds the runtime settings.
type Config struct {
	// File is the record file. Its extension selects the store.
	File string

	Host string
	Port int

	OpenBrowser  bool
	BrowserDelay time.Duration

	// CatalogFile is an optional YAML file with the category options.
	CatalogFile string

	LogLevel       string
	LogDevelopment bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		File:         "codes.csv",
		Host:         "127.0.0.1",
		Port:         8000,
		OpenBrowser:  true,
		BrowserDelay: 1250 * time.Millisecond,
		LogLevel:     "info",
	}
}

// Load applies the dotenv files and the environment on top of the defaults.
// Missing dotenv files are ignored. Variables already set in the environment
// win over values from the files.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}

	for _, f := range envFiles {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := Default()

	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup(EnvFile); ok {
		c.File = v
	}

	if v, ok := lookup(EnvHost); ok {
		c.Host = v
	}

	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}

		c.Port = port
	}

	if v, ok := lookup(EnvOpenBrowser); ok {
		open, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvOpenBrowser, err)
		}

		c.OpenBrowser = open
	}

	if v, ok := lookup(EnvBrowserDelay); ok {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBrowserDelay, err)
		}

		c.BrowserDelay = delay
	}

	if v, ok := lookup(EnvCatalog); ok {
		c.CatalogFile = v
	}

	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = strings.ToLower(v)
	}

	if v, ok := lookup(EnvLogDev); ok {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogDev, err)
		}

		c.LogDevelopment = dev
	}

	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}

	v = strings.TrimSpace(v)

	return v, v != ""
}

// Validate checks that the settings can be used.
func (c Config) Validate() error {
	if strings.TrimSpace(c.File) == "" {
		return errors.New("record file must not be empty")
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}

	if c.BrowserDelay < 0 {
		return fmt.Errorf("browser delay %s is negative", c.BrowserDelay)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return nil
}

