// Package aci implements the agent.Backend interface on Azure Container Instances.
// Each request becomes one container group holding a single agent container.
package aci

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerinstance/armcontainerinstance/v2"
	"github.com/google/uuid"

	"agenthost/internal/agent"
	"agenthost/internal/apperrors"
)

// Kind is the backend name used in configuration and metrics.
const Kind = "aci"

const containerSuffixLen = 4

// Backend implements agent.Backend on Azure Container Instances.
type Backend struct {
	groups ContainerGroups
	cfg    Config

	// newSuffix returns the random part of the container name.
	newSuffix func() string
}

// NewFromConfig creates a backend with an authenticated ARM client.
func NewFromConfig(cfg Config) (*Backend, error) {
	groups, err := NewContainerGroups(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, groups)
}

// New creates a backend around an existing container groups client.
func New(cfg Config, groups ContainerGroups) (*Backend, error) {
	if groups == nil {
		return nil, fmt.Errorf("container groups client is required")
	}
	if cfg.JobPrefix == "" {
		cfg.JobPrefix = agent.DefaultJobPrefix
	}
	return &Backend{
		groups:    groups,
		cfg:       cfg,
		newSuffix: randomSuffix,
	}, nil
}

func randomSuffix() string {
	return uuid.NewString()[:containerSuffixLen]
}

// Kind implements agent.Backend.
func (b *Backend) Kind() string { return Kind }

// JobName implements agent.Backend.
func (b *Backend) JobName(requestID int64) string {
	return agent.ConcatName(b.cfg.JobPrefix, requestID)
}

// Initialize has nothing to prepare: the resource group must already exist.
func (b *Backend) Initialize(context.Context) error {
	return nil
}

// IsJobProvisioned looks the container group up by its resource ID.
// Only a not-found answer means false; every other failure is an error.
func (b *Backend) IsJobProvisioned(ctx context.Context, requestID int64) (bool, error) {
	group, err := b.groups.GetByID(ctx, b.resourceID(b.JobName(requestID)))
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return false, nil
		}
		return false, apperrors.Internal("aci.getContainerGroup", err)
	}
	return group != nil, nil
}

// StartAgent creates the container group for requestID.
func (b *Backend) StartAgent(ctx context.Context, requestID int64, pool string) error {
	name := b.JobName(requestID)
	group := buildContainerGroup(groupSpec{
		Region:        b.cfg.Region,
		OS:            b.cfg.OS,
		ContainerName: name + "-" + b.newSuffix(),
		Image:         b.cfg.Launch.Image,
		Env:           b.cfg.Launch.Env(pool),
		CPU:           b.cfg.CPU,
		MemoryGB:      b.cfg.MemoryGB,
	})

	if err := b.groups.Create(ctx, b.cfg.ResourceGroup, name, group); err != nil {
		if hasStatus(err, http.StatusConflict, http.StatusPreconditionFailed) {
			return apperrors.AlreadyExists("container group", name, err)
		}
		return apperrors.Internal("aci.createContainerGroup", err)
	}
	return nil
}

func (b *Backend) resourceID(name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerInstance/containerGroups/%s",
		b.cfg.SubscriptionID, b.cfg.ResourceGroup, name)
}

// groupSpec is everything that varies between container groups.
type groupSpec struct {
	Region        string
	OS            OSFamily
	ContainerName string
	Image         string
	Env           []agent.EnvVar
	CPU           float64
	MemoryGB      float64
}

// buildContainerGroup returns the create payload for one agent.
// The group has no public IP, ports, volumes or registry credentials.
func buildContainerGroup(spec groupSpec) armcontainerinstance.ContainerGroup {
	env := make([]*armcontainerinstance.EnvironmentVariable, 0, len(spec.Env))
	for _, e := range spec.Env {
		v := &armcontainerinstance.EnvironmentVariable{Name: to.Ptr(e.Name)}
		if e.Name == agent.EnvToken {
			v.SecureValue = to.Ptr(e.Value)
		} else {
			v.Value = to.Ptr(e.Value)
		}
		env = append(env, v)
	}

	return armcontainerinstance.ContainerGroup{
		Location: to.Ptr(spec.Region),
		Properties: &armcontainerinstance.ContainerGroupPropertiesProperties{
			OSType: to.Ptr(spec.OS.osType()),
			Containers: []*armcontainerinstance.Container{
				{
					Name: to.Ptr(spec.ContainerName),
					Properties: &armcontainerinstance.ContainerProperties{
						Image:                to.Ptr(spec.Image),
						EnvironmentVariables: env,
						Resources: &armcontainerinstance.ResourceRequirements{
							Requests: &armcontainerinstance.ResourceRequests{
								CPU:        to.Ptr(spec.CPU),
								MemoryInGB: to.Ptr(spec.MemoryGB),
							},
						},
					},
				},
			},
		},
	}
}

func (f OSFamily) osType() armcontainerinstance.OperatingSystemTypes {
	if f == OSLinux {
		return armcontainerinstance.OperatingSystemTypesLinux
	}
	return armcontainerinstance.OperatingSystemTypesWindows
}
