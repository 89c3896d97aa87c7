package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
)

// PairingStore keeps the pairing map in memory and mirrors every mutation to
// a JSON file.
type PairingStore struct {
	path   string
	pairs  domain.PairingMap
	logger *zap.SugaredLogger
	mu     sync.RWMutex
}

// NewPairingStore loads path. A missing or unreadable file starts an empty
// map; only an unusable directory is an error.
func NewPairingStore(path string, logger *zap.SugaredLogger) (*PairingStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create pairing directory: %w", err)
	}

	s := &PairingStore{
		path:   path,
		pairs:  make(domain.PairingMap),
		logger: logger,
	}
	s.load()
	return s, nil
}

var _ ports.PairingStore = (*PairingStore)(nil)

func (s *PairingStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warnw("Failed to read pairing file, starting empty", "path", s.path, "error", err)
		}
		return
	}

	var pairs domain.PairingMap
	if err := json.Unmarshal(data, &pairs); err != nil {
		s.logger.Warnw("Corrupt pairing file, starting empty", "path", s.path, "error", err)
		return
	}
	if pairs != nil {
		s.pairs = pairs
	}
	s.logger.Infow("Pairings loaded", "path", s.path, "devices", len(s.pairs))
}

// AddPair records the edge in both directions, refreshing the stored names
// when the edge already exists.
func (s *PairingStore) AddPair(ctx context.Context, idA domain.StableID, nameA string, idB domain.StableID, nameB string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pairs[idA] = upsertEdge(s.pairs[idA], idB, nameB)
	s.pairs[idB] = upsertEdge(s.pairs[idB], idA, nameA)

	return s.persistLocked()
}

func (s *PairingStore) RemovePair(ctx context.Context, idA, idB domain.StableID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changedA := s.removeEdgeLocked(idA, idB)
	changedB := s.removeEdgeLocked(idB, idA)
	if !changedA && !changedB {
		return nil
	}

	return s.persistLocked()
}

func (s *PairingStore) EdgesOf(ctx context.Context, stableID domain.StableID) ([]domain.PairedDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]domain.PairedDevice, len(s.pairs[stableID]))
	copy(edges, s.pairs[stableID])
	return edges, nil
}

func (s *PairingStore) IsPaired(ctx context.Context, idA, idB domain.StableID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, edge := range s.pairs[idA] {
		if edge.ID == idB {
			return true, nil
		}
	}
	return false, nil
}

func (s *PairingStore) removeEdgeLocked(from, to domain.StableID) bool {
	edges := s.pairs[from]
	for i, edge := range edges {
		if edge.ID != to {
			continue
		}
		edges = append(edges[:i:i], edges[i+1:]...)
		if len(edges) == 0 {
			delete(s.pairs, from)
		} else {
			s.pairs[from] = edges
		}
		return true
	}
	return false
}

func (s *PairingStore) persistLocked() error {
	data, err := json.MarshalIndent(s.pairs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode pairings: %v", domain.ErrPersistence, err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

func upsertEdge(edges []domain.PairedDevice, id domain.StableID, name string) []domain.PairedDevice {
	for i := range edges {
		if edges[i].ID == id {
			edges[i].Name = name
			return edges
		}
	}
	return append(edges, domain.PairedDevice{ID: id, Name: name})
}
