// Package docker implements the agent.Backend interface using the Docker API.
// Agents run directly on the host Docker daemon, one container per request.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"agenthost/internal/agent"
	"agenthost/internal/apperrors"
)

// Kind is the backend name used in configuration and metrics.
const Kind = "docker"

// Labels set on every agent container.
const (
	labelManagedBy = "managed-by"
	labelRequestID = "agent.request-id"
	labelPool      = "agent.pool"
	managedBy      = "agent-host"
)

// Client is the subset of the Docker API the backend uses.
type Client interface {
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// Backend implements agent.Backend on the local Docker daemon.
type Backend struct {
	client Client
	cfg    Config
}

// NewFromConfig creates a backend with a client configured from DOCKER_HOST and
// related environment variables.
func NewFromConfig(cfg Config) (*Backend, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return New(cfg, dockerClient)
}

// New creates a backend around an existing client.
func New(cfg Config, c Client) (*Backend, error) {
	if c == nil {
		return nil, fmt.Errorf("docker client is required")
	}
	if cfg.JobPrefix == "" {
		cfg.JobPrefix = agent.DefaultJobPrefix
	}
	return &Backend{client: c, cfg: cfg}, nil
}

// Kind implements agent.Backend.
func (b *Backend) Kind() string { return Kind }

// JobName implements agent.Backend.
func (b *Backend) JobName(requestID int64) string {
	return agent.ConcatName(b.cfg.JobPrefix, requestID)
}

// Initialize makes sure the agent image is available locally.
func (b *Backend) Initialize(ctx context.Context) error {
	if err := b.pullImageIfNeeded(ctx, b.cfg.Launch.Image); err != nil {
		return apperrors.Internal("docker.pullImage", err)
	}
	return nil
}

// IsJobProvisioned looks for a managed container with the job's exact name.
// The daemon's name filter matches substrings, so the result is checked again.
func (b *Backend) IsJobProvisioned(ctx context.Context, requestID int64) (bool, error) {
	name := b.JobName(requestID)
	containers, err := b.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("name", name),
			filters.Arg("label", labelManagedBy+"="+managedBy),
		),
	})
	if err != nil {
		return false, apperrors.Internal("docker.listContainers", err)
	}

	for i := range containers {
		for _, n := range containers[i].Names {
			if n == "/"+name {
				return true, nil
			}
		}
	}
	return false, nil
}

// StartAgent creates and starts the agent container for requestID.
func (b *Backend) StartAgent(ctx context.Context, requestID int64, pool string) error {
	name := b.JobName(requestID)
	containerConfig, hostConfig := b.buildContainer(requestID, pool)

	resp, err := b.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		if cerrdefs.IsConflict(err) {
			return apperrors.AlreadyExists("container", name, err)
		}
		return apperrors.Internal("docker.createContainer", err)
	}

	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return apperrors.Internal("docker.startContainer", err)
	}

	slog.Debug("Started agent container", "container", resp.ID, "jobName", name)
	return nil
}

// Ready checks if the Docker daemon is reachable and responsive.
func (b *Backend) Ready(ctx context.Context) error {
	_, err := b.client.Ping(ctx)
	return err
}

// Close releases the docker client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) buildContainer(requestID int64, pool string) (*container.Config, *container.HostConfig) {
	launchEnv := b.cfg.Launch.Env(pool)
	env := make([]string, 0, len(launchEnv))
	for _, e := range launchEnv {
		env = append(env, e.Name+"="+e.Value)
	}

	containerConfig := &container.Config{
		Image: b.cfg.Launch.Image,
		Env:   env,
		Labels: map[string]string{
			labelManagedBy: managedBy,
			labelRequestID: strconv.FormatInt(requestID, 10),
			labelPool:      pool,
		},
	}

	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode(b.cfg.Network),
		Resources: container.Resources{
			NanoCPUs: int64(b.cfg.CPU * 1e9),
			Memory:   int64(b.cfg.MemoryGB * 1024 * 1024 * 1024),
		},
	}
	if b.cfg.DockerSocketPath != "" {
		hostConfig.Mounts = []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: b.cfg.DockerSocketPath,
				Target: b.cfg.DockerSocketPath,
			},
		}
	}

	return containerConfig, hostConfig
}

func (b *Backend) pullImageIfNeeded(ctx context.Context, imageName string) error {
	_, err := b.client.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}
	if !cerrdefs.IsNotFound(err) {
		return err
	}

	slog.Info("Pulling agent image", "image", imageName)
	reader, err := b.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}
