/*
Package metrics exposes Skiff's Prometheus metrics.

Counters and gauges cover the log pipeline (flushed entries, failed segment
writes), volume downloads by outcome, and node connectivity. Call Register
once at startup and mount Handler on the metrics endpoint.
*/
package metrics
