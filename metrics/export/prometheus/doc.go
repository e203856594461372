// Package prometheus renders bakeryauth metrics in Prometheus text format.
//
// [NewPrometheusExporter] reads any [Source], usually a [bakeryauth.Engine], and
// exposes an [http.Handler].
// Counter names are prefixed bakeryauth_*_total; latency histograms end in
// _latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
