package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the playout core.
const (
	MeasurementJobs        = "playout_jobs"
	MeasurementPartTimings = "part_timings"
)

// WriteJobMetric records one executed job: its kind, the playlist it ran
// against ("" for rundown-scoped jobs), its outcome and its wall time
// including the lock wait.
func (c *Client) WriteJobMetric(kind, playlistID, outcome string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(jobPoint(kind, playlistID, outcome, duration, time.Now()))
}

// WritePartTiming records when a part went on air against when the take
// planned it. Points are keyed by part id, not instance id, so repeated
// takes of one part aggregate. Times are Unix milliseconds; planned is nil
// when the take had no planned start.
func (c *Client) WritePartTiming(playlistID, partID string, planned *int64, reported int64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(partTimingPoint(playlistID, partID, planned, reported))
}

func jobPoint(kind, playlistID, outcome string, duration time.Duration, at time.Time) *write.Point {
	tags := map[string]string{
		"kind":    kind,
		"outcome": outcome,
	}
	if playlistID != "" {
		tags["playlist_id"] = playlistID
	}
	return write.NewPoint(
		MeasurementJobs,
		tags,
		map[string]any{
			"duration_ms": float64(duration.Microseconds()) / 1000, //nolint:mnd // µs to ms
		},
		at,
	)
}

func partTimingPoint(playlistID, partID string, planned *int64, reported int64) *write.Point {
	fields := map[string]any{
		"reported_ms": reported,
	}
	if planned != nil {
		fields["planned_ms"] = *planned
		fields["drift_ms"] = reported - *planned
	}
	return write.NewPoint(
		MeasurementPartTimings,
		map[string]string{
			"playlist_id": playlistID,
			"part_id":     partID,
		},
		fields,
		time.UnixMilli(reported),
	)
}
