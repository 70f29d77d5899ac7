package approvalflow

import (
	"fmt"

	"github.com/viant/approvalflow/logging"
	"github.com/viant/approvalflow/policy"
	"github.com/viant/approvalflow/service/messaging/memory"
	"github.com/viant/approvalflow/service/sla"
	"github.com/viant/approvalflow/tracing"
)

// Store vendors.
const (
	StoreMemory   = "memory"
	StoreFS       = "fs"
	StorePostgres = "postgres"
)

// Config is a serialisable representation of the approval service
// configuration. It can be populated from YAML, JSON or environment
// variables; DefaultConfig provides a working in-memory set-up.
type Config struct {
	Store     StoreConfig               `json:"store" yaml:"store" mapstructure:"store"`
	Templates TemplatesConfig           `json:"templates" yaml:"templates" mapstructure:"templates"`
	Directory DirectoryConfig           `json:"directory" yaml:"directory" mapstructure:"directory"`
	Policies  map[string]*policy.Config `json:"policies,omitempty" yaml:"policies,omitempty" mapstructure:"policies"`
	Sweep     sla.Config                `json:"sweep" yaml:"sweep" mapstructure:"sweep"`
	Events    memory.Config             `json:"events" yaml:"events" mapstructure:"events"`
	Logging   logging.Config            `json:"logging" yaml:"logging" mapstructure:"logging"`
	Tracing   tracing.Config            `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// StoreConfig selects the instance store.
type StoreConfig struct {
	Vendor string `json:"vendor" yaml:"vendor" mapstructure:"vendor"`
	// BaseURL is the directory used by the fs vendor.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty" mapstructure:"baseURL"`
	// DSN is the connection string used by the postgres vendor.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// TemplatesConfig locates template definition files.
type TemplatesConfig struct {
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty" mapstructure:"baseURL"`
	// Preload lists template files imported on start-up.
	Preload []string `json:"preload,omitempty" yaml:"preload,omitempty" mapstructure:"preload"`
	// Activate activates preloaded workflow templates.
	Activate bool `json:"activate,omitempty" yaml:"activate,omitempty" mapstructure:"activate"`
}

// DirectoryConfig locates the organisation directory document.
type DirectoryConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() *Config {
	return &Config{
		Store:   StoreConfig{Vendor: StoreMemory},
		Sweep:   sla.DefaultConfig(),
		Events:  memory.DefaultConfig(),
		Logging: logging.DefaultConfig(),
		Tracing: tracing.Config{ServiceName: "approvalflow"},
	}
}

// Validate returns the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Store.Vendor {
	case StoreMemory:
	case StoreFS:
		if c.Store.BaseURL == "" {
			return fmt.Errorf("store.baseURL is required for %v store", StoreFS)
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for %v store", StorePostgres)
		}
	default:
		return fmt.Errorf("unsupported store vendor: %q", c.Store.Vendor)
	}
	if len(c.Templates.Preload) > 0 && c.Templates.BaseURL == "" {
		return fmt.Errorf("templates.baseURL is required to preload templates")
	}
	for body, config := range c.Policies {
		if err := policy.FromConfig(config).Validate(); err != nil {
			return fmt.Errorf("policies.%v: %w", body, err)
		}
	}
	if err := c.Sweep.Validate(); err != nil {
		return err
	}
	if c.Events.QueueBuffer <= 0 {
		return fmt.Errorf("events.queueBuffer must be > 0")
	}
	return c.Logging.Validate()
}
