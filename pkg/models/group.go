package models

type GroupKind string

const (
	GroupSimple    GroupKind = "simple"
	GroupComposite GroupKind = "composite"
)

// ServiceGroup is a named unit of containers that is backed up and
// restored together. Members are listed in stop order; start order is
// the reverse, so dependents (workers) go down first and come up last.
type ServiceGroup struct {
	Name      string    `toml:"name" json:"name"`
	Kind      GroupKind `toml:"kind" json:"kind"`
	Members   []string  `toml:"members" json:"members"`
	DataPaths []string  `toml:"data_paths" json:"data_paths"`
}

// StartOrder returns the members in start order (reverse of stop order).
func (g ServiceGroup) StartOrder() []string {
	out := make([]string, len(g.Members))
	for i, m := range g.Members {
		out[len(g.Members)-1-i] = m
	}
	return out
}
