// Package embeddings turns text into fixed-dimension vectors.
//
// Providers wrap langchaingo clients (Ollama, OpenAI-compatible endpoints) or
// a local fastembed ONNX model. Documents and queries go through the same
// model call so build-time and query-time vectors are comparable.
package embeddings
