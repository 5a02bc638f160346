package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/playout-core/internal/model"
)

const eveningNews = `
studio:
  id: studio-a
  name: Studio A
  mappings:
    vt:
      device: caspar
      lookahead: preload
      lookaheadDepth: 2
  peripheralDevices:
    - id: router
      name: Router
      onActivate: standby
      onDeactivate: "off"
playlist:
  id: evening
  name: Evening News
rundown:
  id: evening-1
  name: Evening News 18:00
  segments:
    - id: headlines
      name: Headlines
      parts:
        - id: opener
          title: Opener
          autoNext: true
          expectedDuration: 5000
          pieces:
            - id: opener-vt
              sourceLayer: vt
              duration: 5000
              objects:
                - id: clip-opener
                  content:
                    clip: opener.mov
            - id: logo
              sourceLayer: gfx
              lifespan: showstyle-end
        - id: story1
          title: Story 1
    - id: weather
      parts:
        - id: forecast
          title: Forecast
`

func TestParse(t *testing.T) {
	ro, err := Parse(strings.NewReader(eveningNews))
	require.NoError(t, err)

	require.Equal(t, "studio-a", ro.StudioID())
	require.Equal(t, "evening", ro.Playlist.ID)
	require.Len(t, ro.Rundown.Segments, 2)
	require.Len(t, ro.Rundown.Segments[0].Parts, 2)

	piece := ro.Rundown.Segments[0].Parts[0].Pieces[0]
	require.NotNil(t, piece.Duration)
	require.EqualValues(t, 5000, *piece.Duration)
	require.Equal(t, "opener.mov", piece.Objects[0].Content["clip"])
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", ``, "empty document"},
		{"unknown key", "playlist: {id: p, studioId: s}\nrundown: {id: r}\nbogus: 1\n", "bogus"},
		{"missing ids", "rundown: {segments: []}\n", "playlist.id is required"},
		{"no studio", "playlist: {id: p}\nrundown: {id: r}\n", "studioId or studio.id"},
		{
			"duplicate part",
			"playlist: {id: p, studioId: s}\nrundown:\n  id: r\n  segments:\n    - id: a\n      parts: [{id: x}, {id: x}]\n",
			`duplicate part id "x"`,
		},
		{
			"bad lifespan",
			"playlist: {id: p, studioId: s}\nrundown:\n  id: r\n  segments:\n    - id: a\n      parts:\n        - id: x\n          pieces: [{id: y, sourceLayer: vt, lifespan: forever}]\n",
			`unknown lifespan "forever"`,
		},
		{
			"bad lookahead",
			"studio:\n  id: s\n  mappings:\n    vt: {lookahead: sometimes}\nplaylist: {id: p}\nrundown: {id: r}\n",
			`unknown lookahead mode "sometimes"`,
		},
		{
			"studio mismatch",
			"studio: {id: s}\nplaylist: {id: p, studioId: t}\nrundown: {id: r}\n",
			"does not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, ErrInvalidRunningOrder)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPieceDocumentDefaults(t *testing.T) {
	p := pieceDocument("r", "s", "x", PieceDef{
		ID:          "y",
		SourceLayer: "vt",
		Objects:     []ObjectDef{{ID: "o"}},
	})
	require.Equal(t, model.LifespanWithinPart, p.Lifespan)
	require.Equal(t, model.PieceTypeNormal, p.Type)
	require.Equal(t, "vt", p.TimelineObjects[0].Layer)
	require.Equal(t, "x", p.StartPartID)
}
