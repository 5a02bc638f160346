// Package model defines the documents the playout core reads and writes.
//
// Templates (Rundown, Segment, Part, Piece) are authored by ingest and are
// read-only to playout. Instances (PartInstance, PieceInstance) are the
// playback occurrences playout creates; each carries a frozen copy of its
// template so later ingest edits never rewrite history. A RundownPlaylist is
// the aggregate that playout mutates.
//
// Instances are never physically deleted by a reset. They are flagged
// Reset=true and stay in their collection for history.
//
// Every type implements docstore.Identifiable through DocID and serialises
// its id as "_id".
package model
