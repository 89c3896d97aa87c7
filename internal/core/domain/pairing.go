package domain

// PairedDevice is one side of a pairing edge as seen from its peer. Name is
// the display name captured when the pair was accepted.
type PairedDevice struct {
	ID   StableID `json:"id"`
	Name string   `json:"name"`
}

// PairingMap is the symmetric adjacency list persisted by pairing stores.
type PairingMap map[StableID][]PairedDevice
