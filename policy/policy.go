package policy

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Decision modes recognised by the engine.
const (
	ModeAny       = "any"       // first member approval advances the step
	ModeUnanimous = "unanimous" // every member must approve
	ModeQuorum    = "quorum"    // Quorum approvals (majority when unset)
)

// Policy decides when a governance body has approved a step.
//
// A nil *Policy behaves like ModeAny.
type Policy struct {
	Mode   string
	Quorum int
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode   string `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
	Quorum int    `json:"quorum,omitempty" yaml:"quorum,omitempty" mapstructure:"quorum"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{Mode: p.Mode, Quorum: p.Quorum}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{Mode: strings.ToLower(c.Mode), Quorum: c.Quorum}
}

// Validate checks mode and quorum values.
func (p *Policy) Validate() error {
	if p == nil {
		return nil
	}
	switch p.Mode {
	case "", ModeAny, ModeUnanimous:
	case ModeQuorum:
		if p.Quorum < 0 {
			return fmt.Errorf("quorum must not be negative: %d", p.Quorum)
		}
	default:
		return fmt.Errorf("unsupported governance policy mode: %q", p.Mode)
	}
	return nil
}

// Required returns the number of approvals needed out of members.
func (p *Policy) Required(members int) int {
	if members <= 0 {
		return 1
	}
	if p == nil {
		return 1
	}
	switch p.Mode {
	case ModeUnanimous:
		return members
	case ModeQuorum:
		if p.Quorum <= 0 {
			return members/2 + 1
		}
		if p.Quorum > members {
			return members
		}
		return p.Quorum
	default:
		return 1
	}
}

// Satisfied reports whether approvals distinct member approvals are enough.
func (p *Policy) Satisfied(approvals, members int) bool {
	return approvals >= p.Required(members)
}

// Registry maps governance body identifiers to policies. It is safe for
// concurrent use.
type Registry struct {
	mux      sync.RWMutex
	policies map[string]*Policy
}

// Register assigns a policy to a governance body.
func (r *Registry) Register(body string, p *Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("governance body %v: %w", body, err)
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	r.policies[body] = p
	return nil
}

// Lookup returns the policy for body or nil when none is registered.
func (r *Registry) Lookup(body string) *Policy {
	if r == nil {
		return nil
	}
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.policies[body]
}

// Load registers policies from a YAML document keyed by governance body:
//
//	board:
//	  mode: quorum
//	  quorum: 3
func (r *Registry) Load(data []byte) error {
	var configs map[string]*Config
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return fmt.Errorf("failed to decode governance policies: %w", err)
	}
	for body, cfg := range configs {
		if err := r.Register(body, FromConfig(cfg)); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: map[string]*Policy{}}
}
