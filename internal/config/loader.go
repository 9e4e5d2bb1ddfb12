package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for shiftgate.yaml/.yml in
// standard locations. The search requires an explicit YAML extension so the
// shiftgate binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("shiftgate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: SHIFTGATE_SERVER_HTTP_ADDR
	viper.SetEnvPrefix("SHIFTGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a shiftgate config file with
// an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".shiftgate"),
		"/etc/shiftgate",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "shiftgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable
// support. Example: SHIFTGATE_STORE_POSTGRES_DSN overrides store.postgres_dsn.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.shutdown_timeout")

	_ = viper.BindEnv("store.backend")
	_ = viper.BindEnv("store.sqlite_path")
	_ = viper.BindEnv("store.postgres_dsn")

	_ = viper.BindEnv("overrides.consumption_window")
	_ = viper.BindEnv("overrides.decision_cache_size")

	_ = viper.BindEnv("notify.queue_size")
	_ = viper.BindEnv("notify.send_timeout")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates. A missing config file is not an error; the
// server then runs on env vars and defaults alone.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded,
// or an empty string when running on env vars only.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
