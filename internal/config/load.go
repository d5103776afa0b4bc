package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// FileBaseName is the base name of the discovered config file.
const FileBaseName = ".clusterone"

// EnvPrefix prefixes every environment variable except PROJECT_DIR and
// DATA_DIR.
const EnvPrefix = "CLUSTERONE"

// DiscoveryOrder lists the config file names looked up in the search directory.
var DiscoveryOrder = []string{
	FileBaseName + ".yaml",
	FileBaseName + ".yml",
	FileBaseName + ".json",
	FileBaseName + ".jsonc",
}

// FlagBindings maps config keys to the command-line flags that override
// them. Flags missing from LoadOptions.Flags are ignored.
var FlagBindings = map[string]string{
	"project_dir":        "project-dir",
	"data_dir":           "data-dir",
	"remote":             "remote",
	"branch":             "branch",
	"update.skip":        "skip-update",
	"update.on_failure":  "update-on-failure",
	"update.min_version": "min-helper-version",
	"job.args":           "job-arg",
	"executor":           "executor",
	"docker.image":       "docker-image",
	"step_timeout":       "step-timeout",
	"dry_run":            "dry-run",
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit config file. It must exist.
	ConfigFile string

	// SearchDir is searched for DiscoveryOrder when ConfigFile is empty.
	// Empty means the process working directory.
	SearchDir string

	// EnvFile is an explicit dotenv file. It must exist. When empty, a .env
	// file in SearchDir is loaded if present.
	EnvFile string

	// Flags supplies command-line overrides.
	Flags *pflag.FlagSet
}

// Load resolves the configuration and returns it with the path of the
// config file that was read ("" when none was found).
func Load(opts LoadOptions) (*Config, string, error) {
	if err := loadDotEnv(opts); err != nil {
		return nil, "", err
	}

	v := viper.New()
	setDefaults(v)

	path, err := configFilePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := readConfigFile(v, path); err != nil {
			return nil, "", err
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, "", err
	}
	if err := bindFlags(v, opts.Flags); err != nil {
		return nil, "", err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Update.OnFailure = strings.ToLower(strings.TrimSpace(cfg.Update.OnFailure))
	cfg.Executor = strings.ToLower(strings.TrimSpace(cfg.Executor))

	if err := cfg.Validate(); err != nil {
		if path != "" {
			return nil, path, fmt.Errorf("%s: %w", path, err)
		}
		return nil, "", err
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("project_dir", d.ProjectDir)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("remote", d.Remote)
	v.SetDefault("branch", d.Branch)
	v.SetDefault("update.command", d.Update.Command)
	v.SetDefault("update.package", d.Update.Package)
	v.SetDefault("update.skip", d.Update.Skip)
	v.SetDefault("update.on_failure", d.Update.OnFailure)
	v.SetDefault("update.min_version", d.Update.MinVersion)
	v.SetDefault("job.command", d.Job.Command)
	v.SetDefault("job.args", []string{})
	v.SetDefault("executor", d.Executor)
	v.SetDefault("docker.image", d.Docker.Image)
	v.SetDefault("docker.binds", []string{})
	v.SetDefault("step_timeout", d.StepTimeout)
	v.SetDefault("dry_run", d.DryRun)
}

// bindEnv maps PROJECT_DIR and DATA_DIR to their keys verbatim and every
// other key to CLUSTERONE_<KEY> with dots replaced by underscores.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("project_dir", model.EnvProjectDir); err != nil {
		return fmt.Errorf("binding %s: %w", model.EnvProjectDir, err)
	}
	if err := v.BindEnv("data_dir", model.EnvDataDir); err != nil {
		return fmt.Errorf("binding %s: %w", model.EnvDataDir, err)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for key, name := range FlagBindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func loadDotEnv(opts LoadOptions) error {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
		return nil
	}

	path := filepath.Join(opts.SearchDir, ".env")
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// configFilePath returns the explicit config file or the first discovered
// one, or "" if there is none.
func configFilePath(opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if !fileExists(opts.ConfigFile) {
			return "", fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		return opts.ConfigFile, nil
	}
	for _, name := range DiscoveryOrder {
		path := filepath.Join(opts.SearchDir, name)
		if fileExists(path) {
			return path, nil
		}
	}
	return "", nil
}

// readConfigFile merges a YAML, JSON or JSONC file into v. JSONC is
// normalized to standard JSON first.
func readConfigFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	case ".jsonc":
		data = jsonc.ToJSON(data)
		v.SetConfigType("json")
	default:
		return fmt.Errorf("unsupported config file extension %q (use .yaml, .yml, .json or .jsonc)", ext)
	}

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
