package ingest

import (
	"context"
	"fmt"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/model"
)

// Result summarises a staged import.
type Result struct {
	RundownID       string `json:"rundownId"`
	PlaylistID      string `json:"playlistId"`
	PlaylistCreated bool   `json:"playlistCreated"`
	Segments        int    `json:"segments"`
	Parts           int    `json:"parts"`
	Pieces          int    `json:"pieces"`
	Removed         int    `json:"removed"`
}

// Apply stages ro on rc. The caller commits with SaveAllToDatabase.
//
// rc must be the cache of ro.Rundown.ID.
func Apply(ctx context.Context, rc *cache.RundownCache, ro *RunningOrder) (Result, error) {
	if rc.RundownID != ro.Rundown.ID {
		return Result{}, fmt.Errorf("%w: cache holds rundown %s, document describes %s",
			ErrInvalidRunningOrder, rc.RundownID, ro.Rundown.ID)
	}
	if existing, ok := rc.Rundown(); ok && existing.PlaylistID != ro.Playlist.ID {
		return Result{}, fmt.Errorf("%w: %s is in %s, not %s",
			ErrPlaylistMismatch, existing.ID, existing.PlaylistID, ro.Playlist.ID)
	}

	res := Result{RundownID: ro.Rundown.ID, PlaylistID: ro.Playlist.ID}
	studioID := ro.StudioID()

	if ro.Studio != nil {
		if err := rc.PutStudio(studioDocument(ro.Studio)); err != nil {
			return Result{}, err
		}
	}

	created, err := rc.EnsurePlaylist(ctx, model.RundownPlaylist{
		ID:                ro.Playlist.ID,
		StudioID:          studioID,
		Name:              ro.Playlist.Name,
		Loop:              ro.Playlist.Loop,
		RundownIDsInOrder: []string{ro.Rundown.ID},
	})
	if err != nil {
		return Result{}, err
	}
	res.PlaylistCreated = created

	if err := upsert(rc.Rundowns, model.Rundown{
		ID:         ro.Rundown.ID,
		PlaylistID: ro.Playlist.ID,
		StudioID:   studioID,
		ExternalID: ro.Rundown.ExternalID,
		Name:       ro.Rundown.Name,
	}); err != nil {
		return Result{}, err
	}

	keepSegments := map[string]bool{}
	keepParts := map[string]bool{}
	keepPieces := map[string]bool{}

	for si, seg := range ro.Rundown.Segments {
		keepSegments[seg.ID] = true
		if err := upsert(rc.Segments, model.Segment{
			ID:         seg.ID,
			RundownID:  ro.Rundown.ID,
			PlaylistID: ro.Playlist.ID,
			Name:       seg.Name,
			Rank:       float64(si),
			IsHidden:   seg.Hidden,
		}); err != nil {
			return Result{}, err
		}
		res.Segments++

		for pi, part := range seg.Parts {
			keepParts[part.ID] = true
			if err := upsert(rc.Parts, model.Part{
				ID:                      part.ID,
				RundownID:               ro.Rundown.ID,
				SegmentID:               seg.ID,
				PlaylistID:              ro.Playlist.ID,
				Title:                   part.Title,
				Rank:                    float64(pi),
				Invalid:                 part.Invalid,
				AutoNext:                part.AutoNext,
				DisableNextInTransition: part.DisableNextInTransition,
				ClassesForNext:          part.ClassesForNext,
				ExpectedDuration:        part.ExpectedDuration,
			}); err != nil {
				return Result{}, err
			}
			res.Parts++

			for _, piece := range part.Pieces {
				keepPieces[piece.ID] = true
				if err := upsert(rc.Pieces, pieceDocument(ro.Rundown.ID, seg.ID, part.ID, piece)); err != nil {
					return Result{}, err
				}
				res.Pieces++
			}
		}
	}

	res.Removed += rc.Segments.RemoveAll(func(s model.Segment) bool { return !keepSegments[s.ID] })
	res.Removed += rc.Parts.RemoveAll(func(p model.Part) bool { return !keepParts[p.ID] })
	res.Removed += rc.Pieces.RemoveAll(func(p model.Piece) bool { return !keepPieces[p.ID] })
	return res, nil
}

func upsert[T docstore.Identifiable](c *cache.Collection[T], doc T) error {
	if _, ok := c.FindOne(doc.DocID()); ok {
		return c.Replace(doc)
	}
	return c.Insert(doc)
}

func studioDocument(def *StudioDef) model.Studio {
	s := model.Studio{
		ID:       def.ID,
		Name:     def.Name,
		Settings: model.StudioSettings{AllowRundownResetOnAir: def.AllowRundownResetOnAir},
		Mappings: make(map[string]model.LayerMapping, len(def.Mappings)),
	}
	for layer, m := range def.Mappings {
		mode := model.LookaheadMode(m.Lookahead)
		if mode == "" {
			mode = model.LookaheadNone
		}
		s.Mappings[layer] = model.LayerMapping{
			Device:                     m.Device,
			LookaheadMode:              mode,
			LookaheadDepth:             m.LookaheadDepth,
			LookaheadMaxSearchDistance: m.MaxSearchDistance,
		}
	}
	for _, d := range def.PeripheralDevices {
		s.PeripheralDevices = append(s.PeripheralDevices, model.PeripheralDevice(d))
	}
	return s
}

func pieceDocument(rundownID, segmentID, partID string, def PieceDef) model.Piece {
	lifespan := model.PieceLifespan(def.Lifespan)
	if lifespan == "" {
		lifespan = model.LifespanWithinPart
	}
	typ := model.PieceType(def.Type)
	if typ == "" {
		typ = model.PieceTypeNormal
	}
	p := model.Piece{
		ID:             def.ID,
		StartRundownID: rundownID,
		StartSegmentID: segmentID,
		StartPartID:    partID,
		Name:           def.Name,
		Enable:         model.PieceEnable{Start: def.Start, Duration: def.Duration},
		Lifespan:       lifespan,
		Type:           typ,
		SourceLayerID:  def.SourceLayer,
		OutputLayerID:  def.OutputLayer,
		Invalid:        def.Invalid,
		HasSideEffects: def.HasSideEffects,
	}
	for _, o := range def.Objects {
		layer := o.Layer
		if layer == "" {
			layer = def.SourceLayer
		}
		obj := model.TimelineObject{
			ID:              o.ID,
			Layer:           layer,
			Priority:        o.Priority,
			Content:         o.Content,
			Classes:         o.Classes,
			NeedsStartDelay: o.NeedsStartDelay,
		}
		for _, kf := range o.Keyframes {
			obj.Keyframes = append(obj.Keyframes, model.Keyframe{
				ID: kf.ID,
				Condition: model.KeyframeCondition{
					IsTransition:      kf.IsTransition,
					PreviousPartClass: kf.PreviousPartClass,
				},
				Content: kf.Content,
			})
		}
		p.TimelineObjects = append(p.TimelineObjects, obj)
	}
	return p
}
