package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
)

const (
	peersKeyPrefix = keyPrefix + "pair:peers:"
	namesKeyPrefix = keyPrefix + "pair:names:"
)

// peersKey is a sorted set of peer ids scored by first pairing time.
func peersKey(id domain.StableID) string {
	return peersKeyPrefix + string(id)
}

// namesKey maps peer id to the name captured at pairing.
func namesKey(id domain.StableID) string {
	return namesKeyPrefix + string(id)
}

// PairingStore keeps pairing edges in Redis. Both directions of an edge
// change in one MULTI/EXEC transaction.
type PairingStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewPairingStore(client *redis.Client) *PairingStore {
	return &PairingStore{
		client: client,
		now:    time.Now,
	}
}

var _ ports.PairingStore = (*PairingStore)(nil)

func (s *PairingStore) AddPair(ctx context.Context, idA domain.StableID, nameA string, idB domain.StableID, nameB string) error {
	score := float64(s.now().UnixNano())

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, peersKey(idA), redis.Z{Score: score, Member: string(idB)})
		pipe.HSet(ctx, namesKey(idA), string(idB), nameB)
		pipe.ZAddNX(ctx, peersKey(idB), redis.Z{Score: score, Member: string(idA)})
		pipe.HSet(ctx, namesKey(idB), string(idA), nameA)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add pair in Redis: %w", err)
	}
	return nil
}

func (s *PairingStore) RemovePair(ctx context.Context, idA, idB domain.StableID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, peersKey(idA), string(idB))
		pipe.HDel(ctx, namesKey(idA), string(idB))
		pipe.ZRem(ctx, peersKey(idB), string(idA))
		pipe.HDel(ctx, namesKey(idB), string(idA))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove pair in Redis: %w", err)
	}
	return nil
}

func (s *PairingStore) EdgesOf(ctx context.Context, stableID domain.StableID) ([]domain.PairedDevice, error) {
	ids, err := s.client.ZRange(ctx, peersKey(stableID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get peers from Redis: %w", err)
	}

	edges := make([]domain.PairedDevice, 0, len(ids))
	if len(ids) == 0 {
		return edges, nil
	}

	names, err := s.client.HMGet(ctx, namesKey(stableID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get peer names from Redis: %w", err)
	}

	for i, id := range ids {
		name, _ := names[i].(string)
		edges = append(edges, domain.PairedDevice{ID: domain.StableID(id), Name: name})
	}
	return edges, nil
}

func (s *PairingStore) IsPaired(ctx context.Context, idA, idB domain.StableID) (bool, error) {
	err := s.client.ZScore(ctx, peersKey(idA), string(idB)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check pair in Redis: %w", err)
	}
	return true, nil
}
