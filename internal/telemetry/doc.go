// Package telemetry sets up OpenTelemetry tracing and metrics export for
// pdfchat.
//
// Export is off by default. When enabled, spans and metrics go to an OTLP
// collector over gRPC or HTTP/protobuf:
//
//	telemetry:
//	  enabled: true
//	  endpoint: localhost:4317
//	  protocol: grpc
//	  sampling_rate: 1.0
//
// Packages create their tracers from the global provider, so installing
// providers here is enough to light up the index, retriever, chain and
// generation spans. Failures while creating exporters degrade to no-op
// providers and are reported by Health.
//
// Tests use NewInMemory to inspect spans and metrics without exporters.
package telemetry
