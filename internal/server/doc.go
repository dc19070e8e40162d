// Package server exposes the HTTP surface: the WebSocket endpoint feeding
// the connection registry, demo incident triggers, health probes and
// Prometheus metrics.
package server
