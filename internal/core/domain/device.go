package domain

import "time"

type ConnectionID string
type StableID string

// Device is a live connection's declared identity. It only exists while the
// connection is open and is never persisted.
type Device struct {
	ConnectionID    ConnectionID `json:"connectionId"`
	StableID        StableID     `json:"stableId"`
	DisplayName     string       `json:"displayName"`
	IsMobile        bool         `json:"isMobile"`
	HasCameraActive bool         `json:"hasCameraActive"`
	ConnectedAt     time.Time    `json:"connectedAt"`
}
