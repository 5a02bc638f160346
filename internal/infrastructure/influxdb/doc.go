// Package influxdb writes playout telemetry to InfluxDB v2.
//
// Two measurements, both tagged with studio_id:
//
//	playout_jobs   kind, outcome, playlist_id  ->  duration_ms
//	part_timings   playlist_id, part_id        ->  reported_ms, planned_ms, drift_ms
//
// Writes are batched by the influxdb-client-go write API and never block
// the job that produced them.
package influxdb
