/*
Package observability turns ResScene lifecycle hooks into Prometheus metrics
and structured log lines.

Both are plain domain.LifecycleHooks values; Combine fans one event out to
several of them so the store and the activator only ever hold a single set.
*/
package observability
