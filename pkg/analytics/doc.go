// Package analytics is the service core: view/download tracking, live metric
// snapshots, the cross-source dashboard aggregator, and the HTTP surface
// that exposes them alongside the upstream proxies.
package analytics
