// Package config implements the engine's Configuration record (spec §6),
// loaded via spf13/viper bound to spf13/cobra flags the way falcon's
// cmd/falcon/main.go binds its root command's flags into viper before
// reading a config file. Unlike falcon's package-level viper.Get* calls,
// every value here is copied into a Config struct once at parse time and
// passed by reference from then on (spec's Design Note on Config/Options:
// "no global mutable state").
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Config holds the engine's configuration: the spec §6 fields it uses plus
// the CLI's explicit files, config path and file concurrency. It has no
// plugins, tsconfig or reporters fields.
type Config struct {
	Pattern     []string          `mapstructure:"pattern"`
	Exclude     []string          `mapstructure:"exclude"`
	Files       []string          `mapstructure:"file"`
	Envs        []string          `mapstructure:"envs"`
	Timeout     int               `mapstructure:"timeout"`
	Context     map[string]string `mapstructure:"context"`
	Watch       bool              `mapstructure:"watch"`
	Require     []string          `mapstructure:"require"`
	Output      string            `mapstructure:"output"`
	ConfigPath  string            `mapstructure:"config"`
	Concurrency int               `mapstructure:"concurrency"`
}

// Default returns the engine's zero-config defaults.
func Default() Config {
	return Config{
		Timeout:     0,
		Output:      "./vela-report",
		Concurrency: 4,
	}
}

// BindFlags registers spec §6's CLI surface on cmd and binds every flag
// into v, so Load can read the merged file+flag+env view in one place.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()
	flags.StringSlice("pattern", nil, "glob filter (repeatable)")
	flags.StringSlice("exclude", nil, "glob exclusion filter (repeatable)")
	flags.StringSlice("file", nil, "explicit file (repeatable)")
	flags.Int("timeout", 0, "default Isolator timeout in ms (0 means fallback)")
	flags.String("config", "", "config file location")
	flags.Bool("watch", false, "re-run on change (unsupported)")
	flags.String("output", "./vela-report", "directory where file reporters write")
	flags.StringSlice("require", nil, "module to preload before each test file")
	flags.Int("concurrency", 4, "max files executed concurrently")

	for _, name := range []string{"pattern", "exclude", "file", "timeout", "config", "watch", "output", "require", "concurrency"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Load reads v's merged configuration (file, flags, environment) into a
// Config, following the same ReadInConfig-then-Unmarshal sequence falcon's
// initConfig uses, except the result is handed back by value instead of
// read back out of viper's package-level singleton later.
func Load(v *viper.Viper, cfgPath string) (Config, error) {
	v.SetEnvPrefix("vela")
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	} else {
		v.SetConfigName("vela")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.loadEnvs(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadEnvs reads each of cfg.Envs (spec §6's `envs: [path…]`) as a YAML
// string-keyed map and merges it into cfg.Context, later files overriding
// earlier ones, using gopkg.in/yaml.v2 the way the teacher's own config
// files are parsed -- this engine's configuration is bound through viper,
// but the `envs` override files are a separate, ad hoc input the CLI
// surface exposes, so they get their own direct YAML decode instead of
// another viper layer.
func (cfg *Config) loadEnvs() error {
	for _, path := range cfg.Envs {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read env file %s: %w", path, err)
		}
		var vars map[string]string
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return fmt.Errorf("parse env file %s: %w", path, err)
		}
		if cfg.Context == nil {
			cfg.Context = make(map[string]string, len(vars))
		}
		for k, val := range vars {
			cfg.Context[k] = val
		}
	}
	return nil
}
