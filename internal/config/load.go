package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// LoadFile reads, parses and builds a configuration file. YAML and JSON both
// work, since the parser accepts either. The file's directory becomes the
// configuration's base directory for resolving relative paths; an explicit
// file:// prefix on the path is accepted and stripped.
func LoadFile(path string) (*Configuration, error) {
	if parsed, err := url.Parse(path); err == nil && parsed.Scheme == "file" {
		path = parsed.Path
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing configuration %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return Build(raw, filepath.Dir(abs))
}
