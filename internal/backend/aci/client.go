package aci

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerinstance/armcontainerinstance/v2"
)

// ContainerGroups is the slice of the container instance control plane the
// backend needs: lookup by fully-qualified resource ID, and create.
type ContainerGroups interface {
	GetByID(ctx context.Context, id string) (*armcontainerinstance.ContainerGroup, error)
	Create(ctx context.Context, resourceGroup, name string, group armcontainerinstance.ContainerGroup) error
}

// armContainerGroups adapts the ARM SDK client to ContainerGroups.
type armContainerGroups struct {
	client *armcontainerinstance.ContainerGroupsClient
}

// NewContainerGroups authenticates against the configured tenant and cloud
// with the default credential chain (environment, workload identity,
// managed identity, Azure CLI).
func NewContainerGroups(cfg Config) (ContainerGroups, error) {
	cloudCfg, err := cloudConfig(cfg.Environment)
	if err != nil {
		return nil, err
	}
	clientOpts := policy.ClientOptions{Cloud: cloudCfg}

	cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		ClientOptions: clientOpts,
		TenantID:      cfg.TenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create azure credential: %w", err)
	}

	return newARMContainerGroups(cfg.SubscriptionID, cred, &arm.ClientOptions{ClientOptions: clientOpts})
}

func newARMContainerGroups(subscriptionID string, cred azcore.TokenCredential, opts *arm.ClientOptions) (*armContainerGroups, error) {
	client, err := armcontainerinstance.NewContainerGroupsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create container groups client: %w", err)
	}
	return &armContainerGroups{client: client}, nil
}

func (c *armContainerGroups) GetByID(ctx context.Context, id string) (*armcontainerinstance.ContainerGroup, error) {
	rid, err := arm.ParseResourceID(id)
	if err != nil {
		return nil, fmt.Errorf("invalid container group id %q: %w", id, err)
	}
	resp, err := c.client.Get(ctx, rid.ResourceGroupName, rid.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.ContainerGroup, nil
}

// Create issues a single PUT guarded by If-None-Match so an existing group is
// rejected with 412 instead of overwritten. ARM conditional requests are
// enforced by the resource provider; callers still check existence first.
// It does not wait for provisioning to finish.
func (c *armContainerGroups) Create(ctx context.Context, resourceGroup, name string, group armcontainerinstance.ContainerGroup) error {
	ctx = policy.WithHTTPHeader(ctx, http.Header{"If-None-Match": []string{"*"}})
	_, err := c.client.BeginCreateOrUpdate(ctx, resourceGroup, name, group, nil)
	return err
}

func hasStatus(err error, codes ...int) bool {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	for _, code := range codes {
		if respErr.StatusCode == code {
			return true
		}
	}
	return false
}
