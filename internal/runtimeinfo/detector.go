// Package runtimeinfo locates the container runtime socket the service
// controller talks to. Docker is preferred; rootless and root podman
// sockets are picked up when docker is absent.
package runtimeinfo

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type RuntimeType string

const (
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
)

type RuntimeInfo struct {
	Type       RuntimeType
	SocketPath string
	Version    string
	IsRootless bool
}

func Detect() (*RuntimeInfo, error) {
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		if strings.Contains(dockerHost, "podman") {
			return detectPodman()
		}
		return detectDocker()
	}

	if info, err := detectDocker(); err == nil {
		return info, nil
	}

	if info, err := detectPodman(); err == nil {
		return info, nil
	}

	return nil, fmt.Errorf("no container runtime detected (tried docker, podman)")
}

func detectDocker() (*RuntimeInfo, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("docker command not found")
	}

	socketPath := "/var/run/docker.sock"
	if _, err := os.Stat(socketPath); err != nil {
		return nil, fmt.Errorf("docker socket not found at %s", socketPath)
	}

	cmd := exec.Command("docker", "version", "--format", "{{.Server.Version}}")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get docker version: %w", err)
	}

	return &RuntimeInfo{
		Type:       RuntimeDocker,
		SocketPath: socketPath,
		Version:    strings.TrimSpace(string(output)),
	}, nil
}

func detectPodman() (*RuntimeInfo, error) {
	if _, err := exec.LookPath("podman"); err != nil {
		return nil, fmt.Errorf("podman command not found")
	}

	isRootless := os.Getuid() != 0

	var socketPath string
	if isRootless {
		socketPath = fmt.Sprintf("/run/user/%d/podman/podman.sock", os.Getuid())
	} else {
		socketPath = "/run/podman/podman.sock"
	}

	if _, err := os.Stat(socketPath); err != nil {
		return nil, fmt.Errorf("podman socket not found at %s", socketPath)
	}

	cmd := exec.Command("podman", "version", "--format", "{{.Server.Version}}")
	output, err := cmd.Output()
	if err != nil {
		cmd = exec.Command("podman", "version", "--format", "{{.Client.Version}}")
		output, err = cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("failed to get podman version: %w", err)
		}
	}

	return &RuntimeInfo{
		Type:       RuntimePodman,
		SocketPath: socketPath,
		Version:    strings.TrimSpace(string(output)),
		IsRootless: isRootless,
	}, nil
}

func (r *RuntimeInfo) SocketURI() string {
	return fmt.Sprintf("unix://%s", r.SocketPath)
}

func (r *RuntimeInfo) Name() string {
	name := string(r.Type)
	if r.Type == RuntimePodman && r.IsRootless {
		name += " (rootless)"
	}
	return name
}
