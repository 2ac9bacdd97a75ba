//go:build integration

package docker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"agenthost/internal/agent"
	"agenthost/internal/apperrors"
	"agenthost/internal/testutil"
)

// The agent is replaced by a plain image that exits right away; the backend
// does not care what the container runs.
const integrationImage = "alpine:latest"

func newIntegrationBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewFromConfig(Config{
		JobPrefix: fmt.Sprintf("agent-it-%d-", time.Now().UnixNano()),
		Launch: agent.Launch{
			Image:  integrationImage,
			OrgURL: "https://dev.azure.com/example",
			Token:  "integration-token",
		},
	})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	if err := b.Ready(context.Background()); err != nil {
		t.Skipf("Docker daemon not available: %v", err)
	}
	return b
}

func removeContainer(t *testing.T, name string) {
	t.Helper()
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return
	}
	defer c.Close()
	_ = c.ContainerRemove(context.Background(), name, container.RemoveOptions{Force: true})
}

func TestBackend_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b := newIntegrationBackend(t)

	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	const requestID = 1
	t.Cleanup(func() { removeContainer(t, b.JobName(requestID)) })

	provisioned, err := b.IsJobProvisioned(ctx, requestID)
	if err != nil {
		t.Fatalf("IsJobProvisioned failed: %v", err)
	}
	if provisioned {
		t.Fatal("Expected no container before StartAgent")
	}

	if err := b.StartAgent(ctx, requestID, "integration"); err != nil {
		t.Fatalf("StartAgent failed: %v", err)
	}

	// Exited containers still count as provisioned
	time.Sleep(2 * time.Second)
	testutil.MustWaitFor(t, "container to be listed", func() bool {
		ok, err := b.IsJobProvisioned(ctx, requestID)
		return err == nil && ok
	}, testutil.WithTimeout(10*time.Second))

	err = b.StartAgent(ctx, requestID, "integration")
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("Expected conflict on duplicate StartAgent, got %v", err)
	}
}
