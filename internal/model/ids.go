package model

import "github.com/google/uuid"

// Collection names in the document store.
const (
	CollectionStudios        = "studios"
	CollectionPlaylists      = "rundownPlaylists"
	CollectionRundowns       = "rundowns"
	CollectionSegments       = "segments"
	CollectionParts          = "parts"
	CollectionPieces         = "pieces"
	CollectionPartInstances  = "partInstances"
	CollectionPieceInstances = "pieceInstances"
)

// ActivationIDPrefix marks activation ids so they stand out in logs.
const ActivationIDPrefix = "activation_"

// NewID returns prefix + "_" + a random UUID.
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// NewActivationID returns a fresh playlist activation id.
func NewActivationID() string {
	return ActivationIDPrefix + uuid.NewString()
}
