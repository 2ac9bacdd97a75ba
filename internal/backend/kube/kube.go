// Package kube implements the agent.Backend interface using Kubernetes batch Jobs.
// Each request becomes one Job in a single target namespace.
package kube

import (
	"context"
	"fmt"
	"log/slog"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"agenthost/internal/agent"
	"agenthost/internal/apperrors"
)

// Kind is the backend name used in configuration and metrics.
const Kind = "kubernetes"

const dockerVolumeName = "docker-volume"

// Backend implements agent.Backend on a Kubernetes cluster.
type Backend struct {
	client           kubernetes.Interface
	namespace        string
	jobPrefix        string
	launch           agent.Launch
	dockerSocketPath string

	// template is never mutated after construction. StartAgent works on a deep copy.
	template *batchv1.Job
}

// NewFromConfig creates a backend with a client built from the default
// loading rules: $KUBECONFIG or ~/.kube/config, else the in-cluster service account.
func NewFromConfig(cfg Config) (*Backend, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		rules.ExplicitPath = cfg.Kubeconfig
	}
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes client config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return New(cfg, client)
}

// New creates a backend around an existing client.
// The job definition file, if configured, is read and parsed here once.
func New(cfg Config, client kubernetes.Interface) (*Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("kubernetes client is required")
	}

	b := &Backend{
		client:           client,
		namespace:        cfg.Namespace,
		jobPrefix:        cfg.JobPrefix,
		launch:           cfg.Launch,
		dockerSocketPath: cfg.DockerSocketPath,
	}
	if b.namespace == "" {
		b.namespace = defaultNamespace
	}
	if b.jobPrefix == "" {
		b.jobPrefix = agent.DefaultJobPrefix
	}

	if cfg.DefinitionFile != "" {
		tmpl, err := LoadTemplate(cfg.DefinitionFile)
		if err != nil {
			return nil, err
		}
		b.template = tmpl
		if tmpl.Name != "" {
			b.jobPrefix = tmpl.Name
		}
		slog.Info("Loaded job definition", "file", cfg.DefinitionFile, "jobPrefix", b.jobPrefix)
	}

	return b, nil
}

// Kind implements agent.Backend.
func (b *Backend) Kind() string { return Kind }

// JobName implements agent.Backend.
func (b *Backend) JobName(requestID int64) string {
	return agent.HyphenName(b.jobPrefix, requestID)
}

// Initialize creates the target namespace when it does not exist.
func (b *Backend) Initialize(ctx context.Context) error {
	namespaces, err := b.client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return apperrors.Internal("kubernetes.listNamespaces", err)
	}
	for _, ns := range namespaces.Items {
		if ns.Name == b.namespace {
			return nil
		}
	}

	_, err = b.client.CoreV1().Namespaces().Create(ctx, &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: b.namespace},
	}, metav1.CreateOptions{})
	switch {
	case apierrors.IsAlreadyExists(err):
		return nil
	case err != nil:
		return apperrors.Internal("kubernetes.createNamespace", err)
	}

	slog.Info("Created namespace", "namespace", b.namespace)
	return nil
}

// IsJobProvisioned lists the namespace's jobs and looks for an exact name match.
// This is a linear scan over every job in the namespace; fine while the
// namespace only holds in-flight agents.
func (b *Backend) IsJobProvisioned(ctx context.Context, requestID int64) (bool, error) {
	jobs, err := b.client.BatchV1().Jobs(b.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return false, apperrors.Internal("kubernetes.listJobs", err)
	}

	name := b.JobName(requestID)
	for i := range jobs.Items {
		if jobs.Items[i].Name == name {
			return true, nil
		}
	}
	return false, nil
}

// StartAgent submits the job for requestID to the target namespace.
func (b *Backend) StartAgent(ctx context.Context, requestID int64, pool string) error {
	job := b.buildJob(requestID, pool)

	_, err := b.client.BatchV1().Jobs(b.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return apperrors.AlreadyExists("job", job.Name, err)
		}
		return apperrors.Internal("kubernetes.createJob", err)
	}
	return nil
}

// Ready verifies the API server answers for the target namespace.
func (b *Backend) Ready(ctx context.Context) error {
	_, err := b.client.CoreV1().Namespaces().Get(ctx, b.namespace, metav1.GetOptions{})
	return err
}

// buildJob returns the job definition for one request: a copy of the
// template with only its name replaced, or a synthesized single-container job.
func (b *Backend) buildJob(requestID int64, pool string) *batchv1.Job {
	name := b.JobName(requestID)

	if b.template != nil {
		job := b.template.DeepCopy()
		job.Name = name
		return job
	}

	env := make([]corev1.EnvVar, 0, 3)
	for _, e := range b.launch.Env(pool) {
		env = append(env, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}

	job := &batchv1.Job{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "batch/v1",
			Kind:       "Job",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: b.namespace,
		},
		Spec: batchv1.JobSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:  name,
							Image: b.launch.Image,
							Env:   env,
						},
					},
				},
			},
		},
	}

	// Not every cluster allows hostPath mounts, so the docker socket is opt-in
	if b.dockerSocketPath != "" {
		podSpec := &job.Spec.Template.Spec
		podSpec.Volumes = []corev1.Volume{
			{
				Name: dockerVolumeName,
				VolumeSource: corev1.VolumeSource{
					HostPath: &corev1.HostPathVolumeSource{Path: b.dockerSocketPath},
				},
			},
		}
		podSpec.Containers[0].VolumeMounts = []corev1.VolumeMount{
			{
				Name:      dockerVolumeName,
				MountPath: b.dockerSocketPath,
			},
		}
	}

	return job
}
