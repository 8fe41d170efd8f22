package grouping

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/stackback/stackback/pkg/models"
)

// NotFoundError is returned by Lookup for unknown group names.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("service group not found: %s", e.Name)
}

// Registry is the static catalog of service groups. It is built once
// from configuration and immutable afterwards; run controllers only
// read from it.
type Registry struct {
	groups map[string]models.ServiceGroup
	names  []string
}

func NewRegistry(groups []models.ServiceGroup) (*Registry, error) {
	r := &Registry{
		groups: make(map[string]models.ServiceGroup, len(groups)),
	}
	memberOwner := make(map[string]string)

	for _, group := range groups {
		if err := validate(group); err != nil {
			return nil, err
		}
		if _, exists := r.groups[group.Name]; exists {
			return nil, fmt.Errorf("duplicate service group: %s", group.Name)
		}
		for _, member := range group.Members {
			if owner, taken := memberOwner[member]; taken {
				return nil, fmt.Errorf("member %s declared in both %s and %s: groups must be independently stoppable", member, owner, group.Name)
			}
			memberOwner[member] = group.Name
		}
		r.groups[group.Name] = group
		r.names = append(r.names, group.Name)
	}

	sort.Strings(r.names)
	return r, nil
}

func (r *Registry) Lookup(name string) (models.ServiceGroup, error) {
	group, ok := r.groups[name]
	if !ok {
		return models.ServiceGroup{}, &NotFoundError{Name: name}
	}
	return group, nil
}

func (r *Registry) List() []models.ServiceGroup {
	out := make([]models.ServiceGroup, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.groups[name])
	}
	return out
}

func validate(group models.ServiceGroup) error {
	if group.Name == "" {
		return fmt.Errorf("service group with empty name")
	}
	switch group.Kind {
	case models.GroupSimple, models.GroupComposite:
	case "":
		return fmt.Errorf("group %s: missing kind", group.Name)
	default:
		return fmt.Errorf("group %s: unknown kind %q", group.Name, group.Kind)
	}
	if len(group.Members) == 0 {
		return fmt.Errorf("group %s: members list is empty", group.Name)
	}
	seen := make(map[string]bool, len(group.Members))
	for _, member := range group.Members {
		if member == "" {
			return fmt.Errorf("group %s: empty member name", group.Name)
		}
		if seen[member] {
			return fmt.Errorf("group %s: duplicate member %s", group.Name, member)
		}
		seen[member] = true
	}
	if len(group.DataPaths) == 0 {
		return fmt.Errorf("group %s: data_paths is empty", group.Name)
	}
	for _, path := range group.DataPaths {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("group %s: data path %s is not absolute", group.Name, path)
		}
	}
	return nil
}
