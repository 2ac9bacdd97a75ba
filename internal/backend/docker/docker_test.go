package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"agenthost/internal/agent"
	"agenthost/internal/apperrors"
	"agenthost/internal/config"
)

type createdContainer struct {
	config     *container.Config
	hostConfig *container.HostConfig
	started    bool
}

// fakeDocker is an in-memory daemon keyed by container name.
type fakeDocker struct {
	mu         sync.Mutex
	images     map[string]bool
	containers map[string]*createdContainer
	pulls      []string
	listErr    error
	createErr  error
	pingErr    error
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{
		images:     make(map[string]bool),
		containers: make(map[string]*createdContainer),
	}
}

func (f *fakeDocker) ImageInspect(_ context.Context, imageID string, _ ...client.ImageInspectOption) (image.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.images[imageID] {
		return image.InspectResponse{}, fmt.Errorf("no such image %s: %w", imageID, cerrdefs.ErrNotFound)
	}
	return image.InspectResponse{ID: "sha256:" + imageID}, nil
}

func (f *fakeDocker) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, ref)
	f.images[ref] = true
	return io.NopCloser(strings.NewReader(`{"status":"Downloaded"}`)), nil
}

// ContainerList mimics the daemon's substring name filter.
func (f *fakeDocker) ContainerList(_ context.Context, options container.ListOptions) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []container.Summary
	for name, c := range f.containers {
		if !options.Filters.Match("name", name) {
			continue
		}
		if c.config.Labels[labelManagedBy] != managedBy {
			continue
		}
		out = append(out, container.Summary{ID: "id-" + name, Names: []string{"/" + name}, Labels: c.config.Labels})
	}
	return out, nil
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	if _, ok := f.containers[name]; ok {
		return container.CreateResponse{}, fmt.Errorf("container name %q is already in use: %w", name, cerrdefs.ErrConflict)
	}
	f.containers[name] = &createdContainer{config: cfg, hostConfig: hostConfig}
	return container.CreateResponse{ID: "id-" + name}, nil
}

func (f *fakeDocker) ContainerStart(_ context.Context, containerID string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[strings.TrimPrefix(containerID, "id-")]
	if !ok {
		return fmt.Errorf("no such container %s: %w", containerID, cerrdefs.ErrNotFound)
	}
	c.started = true
	return nil
}

func (f *fakeDocker) Ping(context.Context) (types.Ping, error) {
	return types.Ping{APIVersion: "1.47"}, f.pingErr
}

func (f *fakeDocker) Close() error { return nil }

func testConfig() Config {
	return Config{
		JobPrefix: "agent-job-",
		Launch: agent.Launch{
			Image:  "azp-agent:latest",
			OrgURL: "https://dev.azure.com/example",
			Token:  "pat-token",
		},
	}
}

func newTestBackend(t *testing.T, cfg Config) (*Backend, *fakeDocker) {
	t.Helper()
	fake := newFakeDocker()
	b, err := New(cfg, fake)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	return b, fake
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig(config.Map{
		"JOB_IMAGE":              "azp-agent:latest",
		"ORG_URL":                "https://dev.azure.com/example",
		"ORG_PAT":                "pat-token",
		"JOB_DOCKER_SOCKET_PATH": "/var/run/docker.sock",
		"JOB_MEMORY_GB":          "2",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.JobPrefix != agent.DefaultJobPrefix {
		t.Errorf("Expected default prefix, got %q", cfg.JobPrefix)
	}
	if cfg.DockerSocketPath != "/var/run/docker.sock" {
		t.Errorf("Expected socket path, got %q", cfg.DockerSocketPath)
	}
	if cfg.CPU != 0 || cfg.MemoryGB != 2 {
		t.Errorf("Expected unlimited CPU and 2 GB, got %v and %v", cfg.CPU, cfg.MemoryGB)
	}
}

func TestLoadConfigMissingImage(t *testing.T) {
	t.Parallel()
	_, err := LoadConfig(config.Map{
		"ORG_URL": "https://dev.azure.com/example",
		"ORG_PAT": "pat-token",
	})
	if !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "JOB_IMAGE") {
		t.Errorf("Expected error to name JOB_IMAGE, got %q", err.Error())
	}
}

func TestJobName(t *testing.T) {
	t.Parallel()
	b, _ := newTestBackend(t, testConfig())
	if got := b.JobName(42); got != "agent-job-42" {
		t.Errorf("Expected agent-job-42, got %q", got)
	}
}

func TestInitializePullsMissingImage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, fake := newTestBackend(t, testConfig())

	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("Second Initialize failed: %v", err)
	}
	if len(fake.pulls) != 1 || fake.pulls[0] != "azp-agent:latest" {
		t.Errorf("Expected a single pull of azp-agent:latest, got %v", fake.pulls)
	}
}

func TestProvisioningLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, fake := newTestBackend(t, testConfig())

	// agent-job-70 must not satisfy a lookup for agent-job-7
	if err := b.StartAgent(ctx, 70, "pool"); err != nil {
		t.Fatalf("StartAgent failed: %v", err)
	}

	provisioned, err := b.IsJobProvisioned(ctx, 7)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if provisioned {
		t.Fatal("Expected request 7 not to be provisioned")
	}

	if err := b.StartAgent(ctx, 7, "linux-pool"); err != nil {
		t.Fatalf("StartAgent failed: %v", err)
	}
	provisioned, err = b.IsJobProvisioned(ctx, 7)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !provisioned {
		t.Fatal("Expected request 7 to be provisioned")
	}

	c := fake.containers["agent-job-7"]
	if !c.started {
		t.Error("Expected container to be started")
	}
	if c.config.Labels[labelPool] != "linux-pool" || c.config.Labels[labelRequestID] != "7" {
		t.Errorf("Unexpected labels: %v", c.config.Labels)
	}
	wantEnv := []string{
		"AZP_URL=https://dev.azure.com/example",
		"AZP_TOKEN=pat-token",
		"AZP_POOL=linux-pool",
	}
	if strings.Join(c.config.Env, ",") != strings.Join(wantEnv, ",") {
		t.Errorf("Expected env %v, got %v", wantEnv, c.config.Env)
	}
	if c.hostConfig.Mounts != nil {
		t.Errorf("Expected no mounts, got %v", c.hostConfig.Mounts)
	}
}

func TestStartAgentConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, _ := newTestBackend(t, testConfig())

	if err := b.StartAgent(ctx, 3, "pool"); err != nil {
		t.Fatalf("StartAgent failed: %v", err)
	}
	err := b.StartAgent(ctx, 3, "pool")
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("Expected conflict error, got %v", err)
	}
	if !cerrdefs.IsConflict(err) {
		t.Error("Expected docker conflict to stay reachable")
	}
}

func TestBackendErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, fake := newTestBackend(t, testConfig())
	fake.listErr = errors.New("daemon unavailable")
	fake.createErr = errors.New("no space left on device")

	provisioned, err := b.IsJobProvisioned(ctx, 1)
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("Expected internal error from list, got %v", err)
	}
	if provisioned {
		t.Error("Expected provisioned to be false on error")
	}

	if err := b.StartAgent(ctx, 1, "pool"); !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("Expected internal error from create, got %v", err)
	}
}

func TestBuildContainerOptions(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.DockerSocketPath = "/var/run/docker.sock"
	cfg.Network = "agents"
	cfg.CPU = 1.5
	cfg.MemoryGB = 2
	b, _ := newTestBackend(t, cfg)

	_, hostConfig := b.buildContainer(5, "pool")
	if len(hostConfig.Mounts) != 1 {
		t.Fatalf("Expected 1 mount, got %d", len(hostConfig.Mounts))
	}
	m := hostConfig.Mounts[0]
	if m.Type != mount.TypeBind || m.Source != "/var/run/docker.sock" || m.Target != "/var/run/docker.sock" {
		t.Errorf("Unexpected mount: %+v", m)
	}
	if hostConfig.NetworkMode != "agents" {
		t.Errorf("Expected network agents, got %q", hostConfig.NetworkMode)
	}
	if hostConfig.NanoCPUs != 1_500_000_000 {
		t.Errorf("Expected 1.5e9 NanoCPUs, got %d", hostConfig.NanoCPUs)
	}
	if hostConfig.Memory != 2<<30 {
		t.Errorf("Expected 2 GiB memory, got %d", hostConfig.Memory)
	}
}

func TestReady(t *testing.T) {
	t.Parallel()
	b, fake := newTestBackend(t, testConfig())
	if err := b.Ready(context.Background()); err != nil {
		t.Fatalf("Expected ready, got %v", err)
	}
	fake.pingErr = errors.New("connection refused")
	if err := b.Ready(context.Background()); err == nil {
		t.Fatal("Expected error when daemon is down")
	}
}
