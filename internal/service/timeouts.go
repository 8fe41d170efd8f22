package service

import "time"

const (
	ContainerStopTimeout = 30 * time.Second
	ContainerOpTimeout   = 30 * time.Second
)
