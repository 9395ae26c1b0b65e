// Package metrics defines and registers the scheduler's Prometheus metrics,
// a periodic Collector that polls the running-job registry and cleanup
// manager every 15 seconds, and a domain-agnostic HealthChecker for
// liveness/readiness probes.
//
// Metrics are grouped by concern: running-execution counts and outcomes,
// task-update routing, node quarantine events, cleanup backlog, sync loop
// tick timing, and database retry attempts. All are registered, but only
// some are updated inside this module: the sync loop feeds its tick
// metrics, the Collector sets the running-execution and cleanup-backlog
// gauges, and RecordExecutionOutcome (which nothing here calls) bumps the
// outcome counters. The routing, quarantine, paused-node, cleanup-emission
// and retry metrics are not updated anywhere in this module. Handler
// exposes them over HTTP for scraping.
package metrics
