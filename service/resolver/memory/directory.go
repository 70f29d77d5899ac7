// Package memory provides an in-memory organisation directory that can be
// loaded from YAML.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/approvalflow/service/resolver"
	"gopkg.in/yaml.v3"
)

// Document is the YAML representation of a directory.
type Document struct {
	Actors     []*resolver.Actor   `yaml:"actors"`
	Governance map[string][]string `yaml:"governance"`
}

// Directory implements resolver.Directory. It is safe for concurrent use and
// may be mutated while engines resolve against it.
type Directory struct {
	mux        sync.RWMutex
	actors     map[string]*resolver.Actor
	governance map[string][]string
}

var _ resolver.Directory = (*Directory)(nil)

// Put adds or replaces an actor.
func (d *Directory) Put(actor *resolver.Actor) {
	clone := *actor
	clone.Roles = append([]string(nil), actor.Roles...)
	clone.Capabilities = append([]string(nil), actor.Capabilities...)
	d.mux.Lock()
	d.actors[actor.ID] = &clone
	d.mux.Unlock()
}

// SetActive toggles an actor's active flag.
func (d *Directory) SetActive(id string, active bool) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if actor, ok := d.actors[id]; ok {
		actor.Active = active
	}
}

// SetGovernance replaces the member set of a governance body.
func (d *Directory) SetGovernance(body string, members ...string) {
	d.mux.Lock()
	d.governance[body] = append([]string(nil), members...)
	d.mux.Unlock()
}

func (d *Directory) Actor(_ context.Context, id string) (*resolver.Actor, error) {
	d.mux.RLock()
	defer d.mux.RUnlock()
	actor, ok := d.actors[id]
	if !ok {
		return nil, nil
	}
	clone := *actor
	return &clone, nil
}

func (d *Directory) ManagerOf(_ context.Context, actorID string) (string, error) {
	d.mux.RLock()
	defer d.mux.RUnlock()
	if actor, ok := d.actors[actorID]; ok {
		return actor.ManagerID, nil
	}
	return "", nil
}

// HRManagers returns HR managers of orgUnit plus company-wide HR managers
// that have no org unit.
func (d *Directory) HRManagers(_ context.Context, orgUnit string) ([]string, error) {
	return d.match(func(actor *resolver.Actor) bool {
		return contains(actor.Capabilities, resolver.CapabilityHRManager) && (actor.OrgUnit == "" || actor.OrgUnit == orgUnit)
	}), nil
}

func (d *Directory) RoleMembers(_ context.Context, role string) ([]string, error) {
	return d.match(func(actor *resolver.Actor) bool {
		return contains(actor.Roles, role)
	}), nil
}

func (d *Directory) GovernanceMembers(_ context.Context, body string) ([]string, error) {
	d.mux.RLock()
	defer d.mux.RUnlock()
	return append([]string(nil), d.governance[body]...), nil
}

func (d *Directory) match(predicate func(actor *resolver.Actor) bool) []string {
	d.mux.RLock()
	defer d.mux.RUnlock()
	var ret []string
	for _, actor := range d.actors {
		if predicate(actor) {
			ret = append(ret, actor.ID)
		}
	}
	sort.Strings(ret)
	return ret
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

// Decode builds a directory from a YAML document.
func Decode(data []byte) (*Directory, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode directory: %w", err)
	}
	ret := New()
	for _, actor := range doc.Actors {
		if actor.ID == "" {
			return nil, fmt.Errorf("directory actor without id")
		}
		ret.Put(actor)
	}
	for body, members := range doc.Governance {
		ret.SetGovernance(body, members...)
	}
	return ret, nil
}

// Load reads a YAML directory from URL.
func Load(ctx context.Context, fs afs.Service, URL string, options ...storage.Option) (*Directory, error) {
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory from %s: %w", URL, err)
	}
	return Decode(data)
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		actors:     map[string]*resolver.Actor{},
		governance: map[string][]string{},
	}
}
