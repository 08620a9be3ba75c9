// Package config loads the flat YAML configuration that drives the signing
// and notarization pipelines.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to the upper-cased key name when a key is looked up
// in the environment.
const EnvPrefix = "NOTARIZE_"

var (
	ErrNotFound   = errors.New("configuration file not found")
	ErrInvalid    = errors.New("invalid YAML configuration")
	ErrMissingKey = errors.New("missing configuration key")
	ErrNotScalar  = errors.New("configuration value is not a scalar")
)

// Config is an immutable mapping of configuration keys to values.
type Config struct {
	path   string
	values map[string]value
	lookup func(string) (string, bool)
}

type value struct {
	text   string
	null   bool
	scalar bool
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, path)
		}
		return nil, errors.Wrapf(err, "failed to read configuration %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Parse decodes YAML data into a Config. An empty document yields an empty
// configuration.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}

	values := make(map[string]value)
	if len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return nil, errors.Wrap(ErrInvalid, "top level must be a mapping")
		}
		// Scalars keep their source text so identifiers such as an
		// all-digit team ID are not reinterpreted as numbers.
		for i := 0; i+1 < len(root.Content); i += 2 {
			k, v := root.Content[i], root.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, errors.Wrapf(ErrInvalid, "non-scalar key at line %d", k.Line)
			}
			if v.Kind == yaml.AliasNode && v.Alias != nil {
				v = v.Alias
			}
			values[k.Value] = value{
				text:   v.Value,
				null:   v.Kind == yaml.ScalarNode && v.ShortTag() == "!!null",
				scalar: v.Kind == yaml.ScalarNode,
			}
		}
	}

	return &Config{values: values, lookup: os.LookupEnv}, nil
}

// FromMap builds a Config from already decoded values. The environment is
// not consulted for missing keys.
func FromMap(values map[string]string) *Config {
	m := make(map[string]value, len(values))
	for k, v := range values {
		m[k] = value{text: v, scalar: true}
	}
	return &Config{values: m, lookup: func(string) (string, bool) { return "", false }}
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Get returns the value stored under key. Keys absent from the file fall
// back to the NOTARIZE_<KEY> environment variable.
func (c *Config) Get(key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		if env, found := c.lookup(EnvName(key)); found && env != "" {
			return env, nil
		}
		return "", errors.Wrap(ErrMissingKey, key)
	}
	if v.null {
		return "", errors.Wrap(ErrMissingKey, key)
	}
	if !v.scalar {
		return "", errors.Wrap(ErrNotScalar, key)
	}
	return v.text, nil
}

// GetDefault returns the value under key, or def when the key cannot be
// resolved.
func (c *Config) GetDefault(key, def string) string {
	v, err := c.Get(key)
	if err != nil {
		return def
	}
	return v
}

// Has reports whether key resolves to a value.
func (c *Config) Has(key string) bool {
	_, err := c.Get(key)
	return err == nil
}

// EnvName returns the environment variable consulted for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}
