package playout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/model"
)

func TestOnPlaybackChanged_EarliestWins(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.activate(false))
	require.NoError(t, f.take(""))
	cur := f.playlist().CurrentPartInstanceID()

	issues := f.playback(
		PartPlaybackStarted{PartInstanceID: cur, Time: 100},
		PartPlaybackStarted{PartInstanceID: cur, Time: 50},
		PartPlaybackStarted{PartInstanceID: cur, Time: 200},
	)
	assert.Empty(t, issues)

	inst := f.partInstance(cur)
	require.NotNil(t, inst.Timings.ReportedStartedPlayback)
	assert.Equal(t, int64(50), *inst.Timings.ReportedStartedPlayback)

	require.Len(t, f.timings.timings, 1)
	assert.Equal(t, "A0", f.timings.timings[0].PartID)
	assert.Equal(t, int64(50), f.timings.timings[0].Reported)

	f.playback(PartPlaybackStarted{PartInstanceID: cur, Time: 10})
	assert.Equal(t, int64(10), *f.partInstance(cur).Timings.ReportedStartedPlayback)
}

func TestOnPlaybackChanged_Inconsistencies(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.activate(false))
	require.NoError(t, f.take(""))
	pl := f.playlist()
	cur, next := pl.CurrentPartInstanceID(), pl.NextPartInstanceID()
	curPiece := cur + "_piece_A0"

	issues := f.playback(
		PartPlaybackStopped{PartInstanceID: next, Time: 300},
		PartPlaybackStarted{PartInstanceID: "ghost", Time: 1},
		PiecePlaybackStarted{PartInstanceID: cur, PieceInstanceID: "ghost_piece", Time: 1},
		PiecePlaybackStopped{PartInstanceID: cur, PieceInstanceID: curPiece, Time: 400},
		TriggerRegeneration{Reason: "device reconnected"},
	)

	kinds := make([]string, 0, len(issues))
	for _, i := range issues {
		kinds = append(kinds, i.Kind)
	}
	assert.Equal(t, []string{
		InconsistencyStopWithoutStart,
		InconsistencyUnknownPartInstance,
		InconsistencyUnknownPieceInstance,
		InconsistencyStopWithoutStart,
	}, kinds)

	stopped := f.partInstance(next).Timings.ReportedStoppedPlayback
	require.NotNil(t, stopped, "the stop is still recorded")
	assert.Equal(t, int64(300), *stopped)
	assert.Empty(t, f.timings.timings)
}

func TestOnPlaybackChanged_PieceTimings(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.activate(false))
	require.NoError(t, f.take(""))
	cur := f.playlist().CurrentPartInstanceID()
	piece := cur + "_piece_A0"

	issues := f.playback(
		PiecePlaybackStarted{PartInstanceID: cur, PieceInstanceID: piece, Time: 20},
		PiecePlaybackStarted{PartInstanceID: cur, PieceInstanceID: piece, Time: 25},
		PiecePlaybackStopped{PartInstanceID: cur, PieceInstanceID: piece, Time: 90},
	)
	assert.Empty(t, issues)

	found := f.pieceInstances(docstore.ByID(piece))
	require.Len(t, found, 1)
	pi := found[0]
	require.NotNil(t, pi.ReportedStartedPlayback)
	require.NotNil(t, pi.ReportedStoppedPlayback)
	assert.Equal(t, int64(20), *pi.ReportedStartedPlayback)
	assert.Equal(t, int64(90), *pi.ReportedStoppedPlayback)
}

func TestOnPlaybackChanged_ImplicitTakeOnAutonext(t *testing.T) {
	f := newFixture(t, Config{MinimumTakeSpan: time.Hour})
	f.updatePart("A0", func(p *model.Part) {
		p.AutoNext = true
		p.ExpectedDuration = 5000
	})
	require.NoError(t, f.activate(false))
	require.NoError(t, f.take(""))
	pl := f.playlist()
	a0, a1 := pl.CurrentPartInstanceID(), pl.NextPartInstanceID()

	startedAt := f.clock.Now().UnixMilli() + 5000
	issues := f.playback(PartPlaybackStarted{PartInstanceID: a1, Time: startedAt})
	assert.Empty(t, issues)

	pl = f.playlist()
	assert.Equal(t, a1, pl.CurrentPartInstanceID())
	assert.Equal(t, a0, pl.PreviousPartInstanceID())
	assert.Equal(t, "B0", f.nextPart())

	inst := f.partInstance(a1)
	assert.True(t, inst.IsTaken)
	require.NotNil(t, inst.Timings.Take)
	assert.Equal(t, startedAt, *inst.Timings.Take)
	assert.Equal(t, startedAt, *inst.Timings.ReportedStartedPlayback)

	require.Len(t, f.timings.timings, 1)
	got := f.timings.timings[0]
	assert.Equal(t, "A1", got.PartID)
	require.NotNil(t, got.Planned)
	assert.Equal(t, startedAt, *got.Planned)
}

func TestOnPlaybackChanged_NoImplicitTakeWithoutAutonext(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.activate(false))
	require.NoError(t, f.take(""))
	pl := f.playlist()

	f.playback(PartPlaybackStarted{PartInstanceID: pl.NextPartInstanceID(), Time: 1})
	assert.Equal(t, pl.CurrentPartInstanceID(), f.playlist().CurrentPartInstanceID())
}
