package memory

import (
	"sync"
	"time"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
)

// DeviceRegistry keeps live devices in connection order. Change listeners run
// under the write lock so they observe snapshots in mutation order; they must
// not call back into the registry.
type DeviceRegistry struct {
	devices   map[domain.ConnectionID]*domain.Device
	order     []domain.ConnectionID
	listeners []func([]domain.Device)
	now       func() time.Time
	mu        sync.RWMutex
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		devices: make(map[domain.ConnectionID]*domain.Device),
		now:     time.Now,
	}
}

var _ ports.DeviceRegistry = (*DeviceRegistry)(nil)

// Register upserts the device behind connID. An existing entry keeps its
// position and connect time.
func (r *DeviceRegistry) Register(connID domain.ConnectionID, stableID domain.StableID, displayName string, isMobile bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if device, exists := r.devices[connID]; exists {
		device.StableID = stableID
		device.DisplayName = displayName
		device.IsMobile = isMobile
	} else {
		r.devices[connID] = &domain.Device{
			ConnectionID: connID,
			StableID:     stableID,
			DisplayName:  displayName,
			IsMobile:     isMobile,
			ConnectedAt:  r.now(),
		}
		r.order = append(r.order, connID)
	}

	r.notifyLocked()
}

func (r *DeviceRegistry) SetCameraActive(connID domain.ConnectionID, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[connID]
	if !exists || device.HasCameraActive == active {
		return
	}

	device.HasCameraActive = active
	r.notifyLocked()
}

func (r *DeviceRegistry) ToggleIsMobile(connID domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[connID]
	if !exists {
		return
	}

	device.IsMobile = !device.IsMobile
	r.notifyLocked()
}

func (r *DeviceRegistry) Remove(connID domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[connID]; !exists {
		return
	}

	delete(r.devices, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.notifyLocked()
}

func (r *DeviceRegistry) Get(connID domain.ConnectionID) (domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, exists := r.devices[connID]
	if !exists {
		return domain.Device{}, false
	}
	return *device, true
}

// FindByStableID returns every live connection declaring stableID, in
// connection order.
func (r *DeviceRegistry) FindByStableID(stableID domain.StableID) []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []domain.Device
	for _, id := range r.order {
		if device := r.devices[id]; device.StableID == stableID {
			matches = append(matches, *device)
		}
	}
	return matches
}

func (r *DeviceRegistry) Snapshot() []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

func (r *DeviceRegistry) OnChange(listener func([]domain.Device)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, listener)
}

func (r *DeviceRegistry) snapshotLocked() []domain.Device {
	snapshot := make([]domain.Device, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, *r.devices[id])
	}
	return snapshot
}

func (r *DeviceRegistry) notifyLocked() {
	if len(r.listeners) == 0 {
		return
	}
	snapshot := r.snapshotLocked()
	for _, listener := range r.listeners {
		listener(snapshot)
	}
}
