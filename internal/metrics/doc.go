// ABOUTME: Prometheus metrics package
// ABOUTME: Collectors for the mixer, the event broker and the HTTP API
// Package metrics holds the Prometheus collectors for mixbus processes.
//
// Collectors are registered on an explicit registry so each binary exposes
// only what it runs and tests can inspect values with testutil.
package metrics
