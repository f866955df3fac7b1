// Package provider selects the inference backend for a harness run.
// Resolution is a total function over the environment: it always yields
// exactly one profile and never fails, falling back to the local sidecar
// with documented defaults when no cloud project is configured.
package provider

import (
	"stackharness/internal/logger"
)

// Kind identifies the inference backend family.
type Kind int

const (
	// LocalSidecar serves the model from a co-located vLLM process.
	LocalSidecar Kind = iota
	// RemoteCloud serves the model from a managed cloud inference API.
	RemoteCloud
)

// String returns the stable name of the provider kind.
func (k Kind) String() string {
	switch k {
	case RemoteCloud:
		return "remote-cloud"
	default:
		return "local-sidecar"
	}
}

// Provider identifiers used as the prefix of fully qualified model ids.
const (
	localProviderID  = "vllm"
	remoteProviderID = "vertexai"
)

// Defaults applied when the environment carries no override.
const (
	DefaultLocalInferenceModel = "meta-llama/Llama-3.2-3B-Instruct"
	DefaultLocalEmbeddingModel = "all-MiniLM-L6-v2"
	DefaultSidecarURL          = "http://host.docker.internal:8000/v1"

	DefaultCloudInferenceModel = "gemini-2.0-flash"
	DefaultCloudEmbeddingModel = "text-embedding-004"
	DefaultCloudLocation       = "us-central1"
)

// AuthContext carries remote-cloud credentials. Nil for the local sidecar.
type AuthContext struct {
	ProjectID       string
	Location        string
	CredentialsPath string
}

// Profile is the resolved inference backend. Selected once per run and
// immutable afterward.
type Profile struct {
	Kind             Kind
	InferenceModelID string
	EmbeddingModelID string
	Auth             *AuthContext
	EndpointURL      string
}

// Resolve inspects the environment and picks exactly one provider profile.
// A non-empty cloud project id selects the remote cloud; anything else is
// the local sidecar.
func Resolve(getenv func(string) string) Profile {
	projectID := getenv("STACKHARNESS_CLOUD_PROJECT")
	if projectID == "" {
		projectID = getenv("GCP_PROJECT_ID")
	}

	if projectID != "" {
		location := getenv("STACKHARNESS_CLOUD_LOCATION")
		if location == "" {
			location = getenv("GCP_LOCATION")
		}
		if location == "" {
			location = DefaultCloudLocation
		}

		profile := Profile{
			Kind:             RemoteCloud,
			InferenceModelID: orDefault(getenv("INFERENCE_MODEL"), DefaultCloudInferenceModel),
			EmbeddingModelID: orDefault(getenv("EMBEDDING_MODEL"), DefaultCloudEmbeddingModel),
			Auth: &AuthContext{
				ProjectID:       projectID,
				Location:        location,
				CredentialsPath: getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			},
		}
		logger.Info("Resolved inference provider",
			"provider", profile.Kind.String(),
			"project", projectID,
			"location", location,
			"model", profile.QualifiedInferenceModel())
		return profile
	}

	profile := Profile{
		Kind:             LocalSidecar,
		InferenceModelID: orDefault(getenv("INFERENCE_MODEL"), DefaultLocalInferenceModel),
		EmbeddingModelID: orDefault(getenv("EMBEDDING_MODEL"), DefaultLocalEmbeddingModel),
		EndpointURL:      orDefault(getenv("SIDECAR_URL"), DefaultSidecarURL),
	}
	logger.Info("Resolved inference provider",
		"provider", profile.Kind.String(),
		"endpoint", profile.EndpointURL,
		"model", profile.QualifiedInferenceModel())
	return profile
}

// ProviderID returns the fixed provider prefix for qualified model ids.
func (p Profile) ProviderID() string {
	if p.Kind == RemoteCloud {
		return remoteProviderID
	}
	return localProviderID
}

// QualifiedInferenceModel returns the fully qualified inference model id,
// {provider-prefix}/{model-id}, used uniformly downstream.
func (p Profile) QualifiedInferenceModel() string {
	return p.ProviderID() + "/" + p.InferenceModelID
}

// QualifiedEmbeddingModel returns the fully qualified embedding model id.
func (p Profile) QualifiedEmbeddingModel() string {
	return p.ProviderID() + "/" + p.EmbeddingModelID
}

// ContainerEnv returns the provider-specific environment injected into the
// stack container.
func (p Profile) ContainerEnv() map[string]string {
	env := map[string]string{
		"INFERENCE_MODEL": p.InferenceModelID,
		"EMBEDDING_MODEL": p.EmbeddingModelID,
	}
	if p.Kind == RemoteCloud {
		env["CLOUD_PROJECT_ID"] = p.Auth.ProjectID
		env["CLOUD_LOCATION"] = p.Auth.Location
	} else {
		env["VLLM_URL"] = p.EndpointURL
	}
	return env
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
