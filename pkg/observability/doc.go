// Package observability provides structured logging, Prometheus metrics,
// and health checking for the analytics service.
package observability
