package docker

import (
	"agenthost/internal/agent"
	"agenthost/internal/config"
)

// Configuration keys read by the docker backend.
const (
	KeyDockerSocketPath = "JOB_DOCKER_SOCKET_PATH"
	KeyNetwork          = "JOB_DOCKER_NETWORK"
	KeyCPU              = "JOB_CPU"
	KeyMemoryGB         = "JOB_MEMORY_GB"
)

// Config holds configuration for the docker backend.
type Config struct {
	JobPrefix        string
	Launch           agent.Launch
	DockerSocketPath string  // Host socket bind-mounted into the agent, if set
	Network          string  // Network mode for agent containers, daemon default if empty
	CPU              float64 // Core limit per agent, 0 for unlimited
	MemoryGB         float64 // Memory limit per agent, 0 for unlimited
}

// LoadConfig reads backend configuration from src.
func LoadConfig(src config.Source) (Config, error) {
	cfg := Config{
		JobPrefix:        config.String(src, agent.KeyJobPrefix, agent.DefaultJobPrefix),
		DockerSocketPath: config.String(src, KeyDockerSocketPath, ""),
		Network:          config.String(src, KeyNetwork, ""),
	}

	var err error
	if cfg.CPU, err = config.Float(src, KeyCPU, 0); err != nil {
		return Config{}, err
	}
	if cfg.MemoryGB, err = config.Float(src, KeyMemoryGB, 0); err != nil {
		return Config{}, err
	}
	if cfg.Launch, err = agent.LoadLaunch(src); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
