// Package config provides the configuration support for the application.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/knpwrs/tsm3u/internal/playlist"
)

// Compiled-in sources of the catalog and authorization documents.
const (
	DefaultCatalogURL = "https://tplayapi.code-crafters.app/321codecrafters/fetcher.json"
	DefaultAuthURL    = "https://tplayapi.code-crafters.app/321codecrafters/hmac.json"
	DefaultOutput     = "ts.m3u"
	DefaultRetries    = 3
)

// Config holds the settings of a playlist generation run.
type Config struct {
	CatalogURL string        `yaml:"catalog_url"`
	AuthURL    string        `yaml:"auth_url"`
	Retries    int           `yaml:"retries"`
	Output     string        `yaml:"output"`
	OutputDir  string        `yaml:"output_dir"`
	EPGURL     string        `yaml:"epg_url"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	Parallel   bool          `yaml:"parallel"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		CatalogURL: DefaultCatalogURL,
		AuthURL:    DefaultAuthURL,
		Retries:    DefaultRetries,
		Output:     DefaultOutput,
		EPGURL:     playlist.DefaultEPGURL,
		Timeout:    30 * time.Second,
		UserAgent:  "tsm3u/1.0",
	}
}

// Load config from file, values missing in the file keep their defaults
func Load(fname string) (*Config, error) {
	res := Default()
	data, err := os.ReadFile(fname) // nolint
	if err != nil {
		return nil, err
	}
	// expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("can't parse %s: %w", fname, err)
	}
	return &res, nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	if c.Output == "" {
		return fmt.Errorf("output path is empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout can't be negative")
	}
	for name, u := range map[string]string{"catalog_url": c.CatalogURL, "auth_url": c.AuthURL} {
		if err := checkURL(u); err != nil {
			return fmt.Errorf("bad %s: %w", name, err)
		}
	}
	return nil
}

func checkURL(u string) error {
	if u == "" {
		return fmt.Errorf("empty url")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must start with http:// or https://, got %q", u)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url %q has no host", u)
	}
	return nil
}
