package kube

import (
	"agenthost/internal/agent"
	"agenthost/internal/config"
)

// Configuration keys read by the Kubernetes backend.
const (
	KeyNamespace        = "JOB_NAMESPACE"
	KeyDefinitionFile   = "JOB_DEFINITION_FILE"
	KeyDockerSocketPath = "JOB_DOCKER_SOCKET_PATH"
	KeyKubeconfig       = "KUBECONFIG"
)

const defaultNamespace = "default"

// Config holds configuration for the Kubernetes backend.
type Config struct {
	Namespace        string       // Target namespace, created on Initialize if missing
	JobPrefix        string       // Overridden by the template's metadata.name when set
	Launch           agent.Launch // Unused when a job definition file is configured
	DockerSocketPath string       // Host path mounted into synthesized jobs (optional)
	DefinitionFile   string       // batch/v1 Job template (optional)
	Kubeconfig       string       // Explicit kubeconfig path (optional)
}

// LoadConfig reads backend configuration from src.
// Image, organization URL and token are only required when no job
// definition file is configured, since the template carries its own.
func LoadConfig(src config.Source) (Config, error) {
	cfg := Config{
		Namespace:        config.String(src, KeyNamespace, defaultNamespace),
		JobPrefix:        config.String(src, agent.KeyJobPrefix, agent.DefaultJobPrefix),
		DockerSocketPath: config.String(src, KeyDockerSocketPath, ""),
		DefinitionFile:   config.String(src, KeyDefinitionFile, ""),
		Kubeconfig:       config.String(src, KeyKubeconfig, ""),
	}

	if cfg.DefinitionFile != "" {
		return cfg, nil
	}

	launch, err := agent.LoadLaunch(src)
	if err != nil {
		return Config{}, err
	}
	cfg.Launch = launch
	return cfg, nil
}
