package service

import (
	"context"
	"fmt"
	"os"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/stackback/stackback/internal/runtimeinfo"
)

// DockerController drives group members as containers, resolved by
// container name against the local docker or podman socket.
type DockerController struct {
	cli         *client.Client
	runtimeInfo *runtimeinfo.RuntimeInfo
}

func NewDockerController() (*DockerController, error) {
	info, err := runtimeinfo.Detect()
	if err != nil {
		return nil, fmt.Errorf("failed to detect container runtime: %w\nplease install docker or podman", err)
	}

	if os.Getenv("DOCKER_HOST") == "" {
		os.Setenv("DOCKER_HOST", info.SocketURI())
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create container runtime client: %w", err)
	}

	return &DockerController{cli: cli, runtimeInfo: info}, nil
}

func (c *DockerController) Close() error {
	return c.cli.Close()
}

func (c *DockerController) RuntimeName() string {
	return c.runtimeInfo.Name()
}

func (c *DockerController) Stop(ctx context.Context, member string) error {
	opCtx, cancel := context.WithTimeout(ctx, ContainerStopTimeout+ContainerOpTimeout)
	defer cancel()

	timeout := int(ContainerStopTimeout.Seconds())
	err := c.cli.ContainerStop(opCtx, member, container.StopOptions{
		Timeout: &timeout,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("container %s not found", member)
		}
		return fmt.Errorf("failed to stop container %s: %w", member, err)
	}

	return nil
}

func (c *DockerController) Start(ctx context.Context, member string) error {
	opCtx, cancel := context.WithTimeout(ctx, ContainerOpTimeout)
	defer cancel()

	err := c.cli.ContainerStart(opCtx, member, container.StartOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("container %s not found", member)
		}
		return fmt.Errorf("failed to start container %s: %w", member, err)
	}

	return nil
}

func (c *DockerController) Status(ctx context.Context, member string) (MemberStatus, error) {
	opCtx, cancel := context.WithTimeout(ctx, ContainerOpTimeout)
	defer cancel()

	inspect, err := c.cli.ContainerInspect(opCtx, member)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return MemberStatus{Name: member, State: "not found"}, nil
		}
		return MemberStatus{}, fmt.Errorf("failed to inspect container %s: %w", member, err)
	}

	status := MemberStatus{Name: member}
	if inspect.State != nil {
		status.State = inspect.State.Status
		status.Running = inspect.State.Running
	}
	if inspect.NetworkSettings != nil {
		status.Ports = inspect.NetworkSettings.Ports
	}
	return status, nil
}
