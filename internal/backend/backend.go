// Package backend selects and constructs the configured agent backend.
package backend

import (
	"fmt"

	"agenthost/internal/agent"
	"agenthost/internal/apperrors"
	"agenthost/internal/backend/aci"
	"agenthost/internal/backend/docker"
	"agenthost/internal/backend/kube"
	"agenthost/internal/config"
)

// Kinds lists the supported backends.
var Kinds = []string{aci.Kind, kube.Kind, docker.Kind}

// New reads the settings for kind from src and constructs that backend.
// Configuration problems are reported here, before any client is created.
func New(kind string, src config.Source) (agent.Backend, error) {
	switch kind {
	case aci.Kind:
		cfg, err := aci.LoadConfig(src)
		if err != nil {
			return nil, err
		}
		b, err := aci.NewFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil

	case kube.Kind:
		cfg, err := kube.LoadConfig(src)
		if err != nil {
			return nil, err
		}
		b, err := kube.NewFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil

	case docker.Kind:
		cfg, err := docker.LoadConfig(src)
		if err != nil {
			return nil, err
		}
		b, err := docker.NewFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, apperrors.Configuration("BACKEND", fmt.Sprintf("unknown backend %q, expected one of %v", kind, Kinds))
	}
}
