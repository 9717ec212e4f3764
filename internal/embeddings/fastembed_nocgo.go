//go:build !cgo

package embeddings

import "fmt"

// fastembed-go links onnxruntime, so pure Go builds only offer the HTTP
// providers.
func newFastEmbed(ProviderConfig) (Provider, error) {
	return nil, fmt.Errorf("%w: fastembed needs a cgo build, use ollama or openai", ErrInvalidConfig)
}
