package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedModel is returned for a MODEL_TYPE with no integration.
	ErrUnsupportedModel = errors.New("model type not supported")

	// ErrUnsupportedProvider is returned for an unknown EMBEDDINGS_PROVIDER.
	ErrUnsupportedProvider = errors.New("embeddings provider not supported")

	// ErrModelRuntime marks a failure inside the model runtime itself, such as
	// a crashed runner or an overflowed context window.
	ErrModelRuntime = errors.New("model runtime failure")
)

const runnerCrashSignature = "llama runner process has terminated: exit status 2"

// isModelRuntimeError reports whether err carries a known model-runtime signature.
func isModelRuntimeError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, runnerCrashSignature) ||
		strings.Contains(strings.ToLower(msg), "context window")
}

// ClassifyGenerateError wraps model-runtime failures with ErrModelRuntime and
// operator guidance. Other errors are returned unchanged.
func ClassifyGenerateError(err error) error {
	if !isModelRuntimeError(err) {
		return err
	}
	return fmt.Errorf("%w: the model might have crashed or exceeded its context window. "+
		"Try a shorter query or increase MODEL_N_CTX / reduce MAX_NEW_TOKENS. Original error: %v",
		ErrModelRuntime, err)
}
