package model

import (
	"cmp"
	"slices"
)

// OrderRundowns sorts rundowns by the playlist's explicit order, unlisted
// rundowns last by id.
func OrderRundowns(playlist RundownPlaylist, rundowns []Rundown) []Rundown {
	pos := rundownPositions(playlist, rundowns)
	out := slices.Clone(rundowns)
	slices.SortStableFunc(out, func(a, b Rundown) int {
		return cmp.Compare(pos[a.ID], pos[b.ID])
	})
	return out
}

// OrderSegments sorts segments by rundown order, then rank, then id.
func OrderSegments(playlist RundownPlaylist, rundowns []Rundown, segments []Segment) []Segment {
	pos := rundownPositions(playlist, rundowns)
	out := slices.Clone(segments)
	slices.SortFunc(out, func(a, b Segment) int {
		return cmp.Or(
			cmp.Compare(positionOf(pos, a.RundownID), positionOf(pos, b.RundownID)),
			cmp.Compare(a.Rank, b.Rank),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

// OrderParts sorts parts by their segment's order, then rank, then id.
// Parts whose segment is unknown sort last.
func OrderParts(orderedSegments []Segment, parts []Part) []Part {
	segPos := make(map[string]int, len(orderedSegments))
	for i, s := range orderedSegments {
		segPos[s.ID] = i
	}
	out := slices.Clone(parts)
	slices.SortFunc(out, func(a, b Part) int {
		return cmp.Or(
			cmp.Compare(positionOf(segPos, a.SegmentID), positionOf(segPos, b.SegmentID)),
			cmp.Compare(a.Rank, b.Rank),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

func rundownPositions(playlist RundownPlaylist, rundowns []Rundown) map[string]int {
	pos := make(map[string]int, len(rundowns))
	for i, id := range playlist.RundownIDsInOrder {
		if _, seen := pos[id]; !seen {
			pos[id] = i
		}
	}

	var unlisted []string
	for _, r := range rundowns {
		if _, ok := pos[r.ID]; !ok {
			unlisted = append(unlisted, r.ID)
		}
	}
	slices.Sort(unlisted)
	for i, id := range unlisted {
		pos[id] = len(playlist.RundownIDsInOrder) + i
	}
	return pos
}

func positionOf(pos map[string]int, id string) int {
	if p, ok := pos[id]; ok {
		return p
	}
	return len(pos) + 1
}
