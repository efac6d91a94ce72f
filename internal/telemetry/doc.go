// Package telemetry initializes the OpenTelemetry SDK for traces and
// metrics over OTLP gRPC. Disabled telemetry costs nothing: no exporters
// are created and the global providers stay noop.
package telemetry
