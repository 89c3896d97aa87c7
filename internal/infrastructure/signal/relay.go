package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"lenslink/internal/core/domain"
)

// relay delivers env to its target connection only. An unknown or closed
// target drops the message without telling the sender.
func (h *Hub) relay(env domain.SignalingEnvelope) {
	msg := domain.OutboundMessage{
		Type:     relayTypes[env.Kind],
		OriginID: env.Origin,
	}
	if len(env.Payload) > 0 {
		msg.Payload = env.Payload
	}

	if !h.SendTo(env.Target, msg) {
		h.dropped(env.Origin, env.Target, env.Kind)
		return
	}

	h.observer.RelayDelivered(string(env.Kind))
	h.logger.Debugw("relayed signaling message",
		"kind", env.Kind,
		"origin", env.Origin,
		"target", env.Target,
	)
}

func (h *Hub) dropped(origin, target domain.ConnectionID, kind domain.SignalKind) {
	h.observer.RelayDropped(string(kind))
	h.logger.Debugw("dropping signaling message for unknown target",
		"kind", kind,
		"origin", origin,
		"target", target,
	)
}

// checkPaired enforces the optional pairing gate. ErrDeviceNotFound means the
// target is gone and the message should be dropped quietly.
func (h *Hub) checkPaired(ctx context.Context, origin, target domain.ConnectionID) error {
	targetDevice, ok := h.registry.Get(target)
	if !ok {
		return domain.ErrDeviceNotFound
	}
	originDevice, ok := h.registry.Get(origin)
	if !ok {
		return domain.ErrNotRegistered
	}
	if originDevice.StableID == targetDevice.StableID {
		return nil
	}

	paired, err := h.pairs.IsPaired(ctx, originDevice.StableID, targetDevice.StableID)
	if err != nil {
		return fmt.Errorf("failed to check pairing: %w", err)
	}
	if !paired {
		return domain.ErrNotPaired
	}
	return nil
}

// present reports whether a relayed field was sent at all. Its contents
// belong to the peers.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
