package service

import (
	"context"

	"github.com/docker/go-connections/nat"
)

// MemberStatus is the observed state of one group member.
type MemberStatus struct {
	Name    string      `json:"name"`
	State   string      `json:"state"`
	Running bool        `json:"running"`
	Ports   nat.PortMap `json:"ports,omitempty"`
}

// Controller stops and starts the runtime services a group is made of.
// Every call reports the outcome for exactly one member; run
// controllers own the ordering and never see aggregate-only results.
type Controller interface {
	Stop(ctx context.Context, member string) error
	Start(ctx context.Context, member string) error
	Status(ctx context.Context, member string) (MemberStatus, error)
}
