package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/viant/approvalflow"
)

const envPrefix = "APPROVALFLOW"

// loadConfig reads the optional config file over the defaults; environment
// variables such as APPROVALFLOW_STORE_VENDOR override both.
func loadConfig(path string) (*approvalflow.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"store.vendor", "store.baseURL", "store.dsn",
		"templates.baseURL", "directory.url",
		"sweep.interval", "sweep.workers", "sweep.alertThreshold",
		"logging.level", "logging.format", "tracing.enabled",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	cfg := approvalflow.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}
