package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrFileExists is returned by WriteStarter when the target exists and
// overwriting was not requested.
var ErrFileExists = errors.New("config file already exists")

const starterHeader = `# clusterone-push configuration.
#
# Every key can be overridden by an environment variable (PROJECT_DIR,
# DATA_DIR, or CLUSTERONE_<KEY> with dots replaced by underscores) and by
# the matching command-line flag.
`

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Starter returns the configuration written by WriteStarter: the defaults
// plus the given directories.
func Starter(projectDir, dataDir string) *Config {
	cfg := Default()
	cfg.ProjectDir = projectDir
	cfg.DataDir = dataDir
	return &cfg
}

// WriteStarter writes cfg to path as a commented YAML file. An existing
// file is only replaced when force is set.
func WriteStarter(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
	}

	body, err := Marshal(cfg)
	if err != nil {
		return err
	}
	data := append([]byte(starterHeader+"\n"), body...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
