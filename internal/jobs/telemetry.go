package jobs

import "github.com/nerrad567/playout-core/internal/playout"

// PartTimingWriter stores part timing points. *influxdb.Client satisfies it.
type PartTimingWriter interface {
	WritePartTiming(playlistID, partID string, planned *int64, reported int64)
}

// TimingRecorder adapts a PartTimingWriter to playout.TimingRecorder.
type TimingRecorder struct {
	W PartTimingWriter
}

var _ playout.TimingRecorder = TimingRecorder{}

// RecordPartTiming implements playout.TimingRecorder.
func (t TimingRecorder) RecordPartTiming(pt playout.PartTiming) {
	if t.W == nil {
		return
	}
	t.W.WritePartTiming(pt.PlaylistID, pt.PartID, pt.Planned, pt.Reported)
}
