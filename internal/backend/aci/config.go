package aci

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"

	"agenthost/internal/agent"
	"agenthost/internal/apperrors"
	"agenthost/internal/config"
)

// Configuration keys read by the container instance backend.
const (
	KeySubscriptionID = "AZ_SUBSCRIPTION_ID"
	KeyRegion         = "AZ_REGION"
	KeyTenantID       = "AZ_TENANT_ID"
	KeyResourceGroup  = "AZ_RESOURCE_GROUP"
	KeyEnvironment    = "AZ_ENVIRONMENT"
	KeyJobOS          = "JOB_OS"
	KeyJobCPU         = "JOB_CPU"
	KeyJobMemoryGB    = "JOB_MEMORY_GB"
)

const (
	defaultEnvironment = "AzureGlobalCloud"
	defaultCPU         = 1
	defaultMemoryGB    = 1.5
)

// OSFamily is the container group operating system.
type OSFamily string

const (
	OSLinux   OSFamily = "linux"
	OSWindows OSFamily = "windows"
)

// ParseOSFamily maps a configured value to an OS family.
// Matching is case-insensitive; anything other than "linux" selects Windows.
func ParseOSFamily(value string) OSFamily {
	if strings.ToLower(value) == string(OSLinux) {
		return OSLinux
	}
	return OSWindows
}

// Config holds configuration for the container instance backend.
type Config struct {
	SubscriptionID string
	Region         string
	TenantID       string
	ResourceGroup  string
	Environment    string // Azure cloud name, e.g. AzureGlobalCloud
	JobPrefix      string
	OS             OSFamily
	Launch         agent.Launch
	CPU            float64 // Cores requested per agent container
	MemoryGB       float64 // Memory requested per agent container
}

// LoadConfig reads backend configuration from src.
// The subscription, region, tenant and resource group are checked first so
// a misconfigured Azure target is reported before anything else.
func LoadConfig(src config.Source) (Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.SubscriptionID, err = config.Required(src, KeySubscriptionID); err != nil {
		return Config{}, err
	}
	if cfg.Region, err = config.Required(src, KeyRegion); err != nil {
		return Config{}, err
	}
	if cfg.TenantID, err = config.Required(src, KeyTenantID); err != nil {
		return Config{}, err
	}
	if cfg.ResourceGroup, err = config.Required(src, KeyResourceGroup); err != nil {
		return Config{}, err
	}

	cfg.Environment = config.String(src, KeyEnvironment, defaultEnvironment)
	if _, err := cloudConfig(cfg.Environment); err != nil {
		return Config{}, err
	}

	cfg.JobPrefix = config.String(src, agent.KeyJobPrefix, agent.DefaultJobPrefix)

	osValue := strings.ToLower(config.String(src, KeyJobOS, string(OSLinux)))
	cfg.OS = ParseOSFamily(osValue)
	if osValue != string(OSLinux) && osValue != string(OSWindows) {
		slog.Warn("Unrecognized JOB_OS, using windows", "value", osValue)
	}

	if cfg.CPU, err = config.Float(src, KeyJobCPU, defaultCPU); err != nil {
		return Config{}, err
	}
	if cfg.MemoryGB, err = config.Float(src, KeyJobMemoryGB, defaultMemoryGB); err != nil {
		return Config{}, err
	}

	if cfg.Launch, err = agent.LoadLaunch(src); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// cloudConfig maps an Azure environment name to its endpoints.
func cloudConfig(environment string) (cloud.Configuration, error) {
	switch environment {
	case "AzureGlobalCloud", "AzurePublicCloud":
		return cloud.AzurePublic, nil
	case "AzureChinaCloud":
		return cloud.AzureChina, nil
	case "AzureUSGovernment":
		return cloud.AzureGovernment, nil
	default:
		return cloud.Configuration{}, apperrors.Configuration(KeyEnvironment, fmt.Sprintf("unknown Azure environment %q", environment))
	}
}
