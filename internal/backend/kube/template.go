package kube

import (
	"fmt"
	"os"

	batchv1 "k8s.io/api/batch/v1"
	"sigs.k8s.io/yaml"

	"agenthost/internal/apperrors"
)

// LoadTemplate reads a batch/v1 Job definition (YAML or JSON) from path.
func LoadTemplate(path string) (*batchv1.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Configuration(KeyDefinitionFile, fmt.Sprintf("failed to read job definition: %v", err))
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes a batch/v1 Job definition.
func ParseTemplate(data []byte) (*batchv1.Job, error) {
	var job batchv1.Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, apperrors.Configuration(KeyDefinitionFile, fmt.Sprintf("invalid job definition: %v", err))
	}
	if job.Kind != "" && job.Kind != "Job" {
		return nil, apperrors.Configuration(KeyDefinitionFile, fmt.Sprintf("job definition must be of kind Job, got %q", job.Kind))
	}
	return &job, nil
}
