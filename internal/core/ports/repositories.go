package ports

import (
	"context"
	"io"

	"lenslink/internal/core/domain"
)

// DeviceRegistry holds the devices behind live connections.
type DeviceRegistry interface {
	Register(connID domain.ConnectionID, stableID domain.StableID, displayName string, isMobile bool)
	SetCameraActive(connID domain.ConnectionID, active bool)
	ToggleIsMobile(connID domain.ConnectionID)
	Remove(connID domain.ConnectionID)
	Get(connID domain.ConnectionID) (domain.Device, bool)
	FindByStableID(stableID domain.StableID) []domain.Device
	Snapshot() []domain.Device
	OnChange(listener func([]domain.Device))
}

// PairingStore persists symmetric pairing edges between stable device IDs.
type PairingStore interface {
	AddPair(ctx context.Context, idA domain.StableID, nameA string, idB domain.StableID, nameB string) error
	RemovePair(ctx context.Context, idA, idB domain.StableID) error
	EdgesOf(ctx context.Context, stableID domain.StableID) ([]domain.PairedDevice, error)
	IsPaired(ctx context.Context, idA, idB domain.StableID) (bool, error)
}

// HistoryStore persists scan records in day buckets and keeps a recency window.
type HistoryStore interface {
	Load(ctx context.Context) error
	Append(ctx context.Context, record domain.ScanRecord) error
	AppendToThread(ctx context.Context, recordID string, entry domain.ThreadEntry) (bool, error)
	Recent() []domain.ScanRecord
	Day(ctx context.Context, date string) ([]domain.ScanRecord, error)
}

// MediaStore keeps captured images and returns a reference clients can load.
type MediaStore interface {
	Save(ctx context.Context, name, contentType string, data io.Reader) (string, error)
}
