// Package prometheus provides a Prometheus collector for authlink metrics.
//
// [NewCollector] accepts an [authlink.Engine] and implements
// prometheus.Collector on top of its snapshots. Counter names are prefixed
// authlink_*_total; the single histogram is authlink_store_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register the
//     Collector or mount [Collector.Handler].
//   - Mutate engine state.
package prometheus
