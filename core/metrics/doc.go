// Package metrics exposes Prometheus collectors for synchronization runs.
//
// Collectors register on the default registry through promauto; the HTTP
// server serves them through promhttp on the configured metrics path.
package metrics
