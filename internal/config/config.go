// Package config resolves shadb's ambient settings — repository path, git
// binary, auto-init, log level — the way the teacher repo resolves its own:
// a viper instance layering defaults, an on-disk file, and environment
// variables, in that precedence order (lowest to highest), with explicit
// functional options from the caller always winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the resolved settings for one Repo.
type Config struct {
	// GitBinary is the executable used for every git subprocess call.
	GitBinary string

	// AutoInit controls whether Open runs `git init` when the working
	// directory isn't already a repository.
	AutoInit bool

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// LogFile, if non-empty, routes logging through a rotating file sink
	// instead of stderr.
	LogFile string
}

// Load resolves configuration for the repository rooted at dir.
//
// Precedence (lowest to highest): built-in defaults, `<dir>/.shadb.toml`,
// environment variables prefixed SHADB_.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigName(".shadb")
	v.AddConfigPath(dir)

	v.SetDefault("git_binary", "git")
	v.SetDefault("auto_init", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("SHADB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	configPath := filepath.Join(dir, ".shadb.toml")
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	return &Config{
		GitBinary: v.GetString("git_binary"),
		AutoInit:  v.GetBool("auto_init"),
		LogLevel:  v.GetString("log_level"),
		LogFile:   v.GetString("log_file"),
	}, nil
}

// Default returns the built-in defaults without consulting any file or
// environment variable — used by callers (and tests) that supply every
// setting via explicit options instead.
func Default() *Config {
	return &Config{
		GitBinary: "git",
		AutoInit:  false,
		LogLevel:  "info",
	}
}
