// Package endpoints derives storage endpoints from file location uris.
//
// Pipelines report file locations as uris ("s3:///bucket/key",
// "abacus:///lustre/project/..."); the endpoint column names the storage
// system the uri lives on. When the submitter does not name one explicitly,
// it is derived from the uri scheme. An optional alias map rewrites derived
// endpoints to canonical site names so that different submitters converge on
// one spelling per storage system.
package endpoints

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seqtrack-io/seqtrack/internal/config"
)

// ErrNoScheme is returned when a uri carries no scheme delimiter to derive an
// endpoint from.
var ErrNoScheme = errors.New("uri has no scheme to derive an endpoint from")

// Config holds endpoint alias configuration loaded from .seqtrack.yaml.
type Config struct {
	// EndpointAliases maps derived endpoints (uri schemes) to canonical
	// endpoint names. Key is the scheme, value is the canonical name.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	EndpointAliases map[string]string `yaml:"endpoint_aliases"`
}

// DefaultConfigPath is the default location for the endpoint alias file.
const DefaultConfigPath = ".seqtrack.yaml"

// ConfigPathEnvVar is the environment variable name for a custom config path.
const ConfigPathEnvVar = "SEQTRACK_CONFIG_PATH"

// Derive splits the uri on its scheme delimiter and returns the scheme:
// "s3:///bucket/key" yields "s3". It is a parsing convenience only; uri
// uniqueness is enforced by the store regardless of endpoint.
func Derive(uri string) (string, error) {
	scheme, _, found := strings.Cut(uri, "://")
	if !found || scheme == "" {
		return "", ErrNoScheme
	}

	return scheme, nil
}

// LoadConfig loads endpoint alias configuration from a YAML file at the given
// path.
//
// Behavior:
//   - Returns empty config (not error) if the file doesn't exist - aliases are optional
//   - Returns empty config + logs warning if the YAML is invalid (graceful degradation)
//   - Returns populated config on success
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		EndpointAliases: make(map[string]string),
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Config file not found, continuing without endpoint aliases",
				slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("Failed to read config file, continuing without endpoint aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Failed to parse config file, continuing without endpoint aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return &Config{EndpointAliases: make(map[string]string)}, nil
	}

	if cfg.EndpointAliases == nil {
		cfg.EndpointAliases = make(map[string]string)
	}

	return cfg, nil
}

// LoadConfigFromEnv loads config from the path in SEQTRACK_CONFIG_PATH,
// falling back to ".seqtrack.yaml" in the current directory.
func LoadConfigFromEnv() (*Config, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadConfig(path)
}

// Resolve maps a derived endpoint through the alias table. Unknown endpoints
// pass through unchanged.
func (c *Config) Resolve(endpoint string) string {
	if c == nil || c.EndpointAliases == nil {
		return endpoint
	}

	if canonical, ok := c.EndpointAliases[endpoint]; ok {
		return canonical
	}

	return endpoint
}
