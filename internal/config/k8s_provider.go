package config

import (
	"context"
	"os"
	"strings"
)

const (
	serviceAccountDir = "/var/run/secrets/kubernetes.io/serviceaccount"
	defaultSecretsDir = "/var/secrets"
)

// K8sProvider reads secrets Kubernetes mounts into the pod as files. It only
// reports itself available inside a pod, so local runs fall through to the
// .env file and the environment.
type K8sProvider struct {
	fileProvider *FileProvider
	namespace    string
}

// NewK8sProvider creates a Kubernetes secret provider. An empty secretsPath
// selects /var/secrets; an empty namespace is read from the service account.
func NewK8sProvider(secretsPath, namespace string) *K8sProvider {
	if secretsPath == "" {
		secretsPath = defaultSecretsDir
	}
	if namespace == "" {
		namespace = "default"
		if ns, err := os.ReadFile(serviceAccountDir + "/namespace"); err == nil {
			if trimmed := strings.TrimSpace(string(ns)); trimmed != "" {
				namespace = trimmed
			}
		}
	}

	return &K8sProvider{
		fileProvider: NewFileProvider(secretsPath),
		namespace:    namespace,
	}
}

// GetSecret reads the mounted secret file for key
func (k *K8sProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return k.fileProvider.GetSecret(ctx, key)
}

// Name returns the provider name
func (k *K8sProvider) Name() string {
	return "kubernetes"
}

// IsAvailable checks for a service account token and the secrets directory
func (k *K8sProvider) IsAvailable(ctx context.Context) bool {
	if _, err := os.Stat(serviceAccountDir + "/token"); err != nil {
		return false
	}
	return k.fileProvider.IsAvailable(ctx)
}

// GetNamespace returns the pod's namespace
func (k *K8sProvider) GetNamespace() string {
	return k.namespace
}
