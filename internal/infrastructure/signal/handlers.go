package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lenslink/internal/core/domain"
	"lenslink/pkg/tracing"
	"lenslink/pkg/validation"
)

func (h *Hub) handleMessage(ctx context.Context, connID domain.ConnectionID, msg InboundMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}

	ctx, span := tracing.TraceWebSocketMessage(ctx, msg.Type, string(connID))
	defer span.End()
	h.observer.MessageReceived(msg.Type)

	var err error
	switch msg.Type {
	case TypeRegister:
		err = h.handleRegister(ctx, connID, msg)
	case TypeToggleDeviceType:
		h.registry.ToggleIsMobile(connID)
	case TypeCameraStatus:
		err = h.handleCameraStatus(connID, msg)
	case TypeRequestRemoteCapture:
		err = h.handleTargeted(ctx, connID, msg, domain.SignalTriggerCapture)
	case TypeRequestStream:
		err = h.handleTargeted(ctx, connID, msg, domain.SignalRequestStream)
	case TypeStopStream:
		err = h.handleTargeted(ctx, connID, msg, domain.SignalStopStream)
	case TypeSignalOffer:
		err = h.handleSessionDescription(connID, msg, domain.SignalOffer)
	case TypeSignalAnswer:
		err = h.handleSessionDescription(connID, msg, domain.SignalAnswer)
	case TypeSignalICE:
		err = h.handleICECandidate(connID, msg)
	case TypeRequestPair:
		err = h.handleRequestPair(connID, msg)
	case TypePairAccepted:
		err = h.handlePairAccepted(ctx, connID, msg)
	case TypeRequestUnpair:
		err = h.handleRequestUnpair(ctx, connID, msg)
	case TypeRequestHistory:
		h.sendHistory(connID)
	case TypeAskFollowUp:
		err = h.handleAskFollowUp(connID, msg)
	default:
		err = fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

func decodePayload(msg InboundMessage, v interface{}) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s payload is required", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return nil
}

func (h *Hub) handleRegister(ctx context.Context, connID domain.ConnectionID, msg InboundMessage) error {
	var payload RegisterPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if err := validation.ValidateStableID(string(payload.StableID)); err != nil {
		return err
	}
	if err := validation.ValidateDisplayName(payload.DisplayName); err != nil {
		return err
	}

	name := payload.DisplayName
	if name == "" {
		name = string(payload.StableID)
	}

	h.registry.Register(connID, payload.StableID, name, payload.IsMobile)

	h.logger.Infow("device registered",
		"connection_id", connID,
		"stable_id", payload.StableID,
		"display_name", name,
		"is_mobile", payload.IsMobile,
	)

	h.SendTo(connID, domain.OutboundMessage{
		Type:    domain.MsgPairedDevicesSync,
		Payload: h.edgesOf(ctx, payload.StableID),
	})
	h.sendHistory(connID)
	h.SendTo(connID, domain.OutboundMessage{
		Type:    domain.MsgRTCConfig,
		Payload: RTCConfigPayload{ICEServers: h.cfg.ICEServers},
	})
	return nil
}

func (h *Hub) handleCameraStatus(connID domain.ConnectionID, msg InboundMessage) error {
	var payload CameraStatusPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	h.registry.SetCameraActive(connID, payload.Active)
	return nil
}

func (h *Hub) handleTargeted(ctx context.Context, connID domain.ConnectionID, msg InboundMessage, kind domain.SignalKind) error {
	var payload TargetPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if payload.TargetConnectionID == "" {
		return fmt.Errorf("targetConnectionId is required")
	}

	if h.cfg.RequirePairing && kind != domain.SignalStopStream {
		if err := h.checkPaired(ctx, connID, payload.TargetConnectionID); err != nil {
			if errors.Is(err, domain.ErrDeviceNotFound) {
				h.dropped(connID, payload.TargetConnectionID, kind)
				return nil
			}
			return err
		}
	}

	h.relay(domain.SignalingEnvelope{Origin: connID, Target: payload.TargetConnectionID, Kind: kind})
	return nil
}

func (h *Hub) handleSessionDescription(connID domain.ConnectionID, msg InboundMessage, kind domain.SignalKind) error {
	var payload SessionDescriptionPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if payload.TargetConnectionID == "" {
		return fmt.Errorf("targetConnectionId is required")
	}
	if !present(payload.SDP) {
		return fmt.Errorf("sdp is required")
	}

	raw, err := json.Marshal(SDPRelayPayload{SDP: payload.SDP})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	h.relay(domain.SignalingEnvelope{
		Origin:  connID,
		Target:  payload.TargetConnectionID,
		Kind:    kind,
		Payload: raw,
	})
	return nil
}

func (h *Hub) handleICECandidate(connID domain.ConnectionID, msg InboundMessage) error {
	var payload ICECandidatePayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if payload.TargetConnectionID == "" {
		return fmt.Errorf("targetConnectionId is required")
	}
	if !present(payload.Candidate) {
		return fmt.Errorf("candidate is required")
	}

	raw, err := json.Marshal(ICERelayPayload{Candidate: payload.Candidate})
	if err != nil {
		return fmt.Errorf("failed to encode ICE candidate: %w", err)
	}

	h.relay(domain.SignalingEnvelope{
		Origin:  connID,
		Target:  payload.TargetConnectionID,
		Kind:    domain.SignalICE,
		Payload: raw,
	})
	return nil
}

func (h *Hub) handleRequestPair(connID domain.ConnectionID, msg InboundMessage) error {
	var payload RequestPairPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if payload.TargetConnectionID == "" {
		return fmt.Errorf("targetConnectionId is required")
	}
	if err := validation.ValidateStableID(string(payload.OriginStableID)); err != nil {
		return err
	}
	if payload.TargetConnectionID == connID {
		return domain.ErrSelfPairing
	}
	if target, ok := h.registry.Get(payload.TargetConnectionID); ok && target.StableID == payload.OriginStableID {
		return domain.ErrSelfPairing
	}

	delivered := h.SendTo(payload.TargetConnectionID, domain.OutboundMessage{
		Type:     domain.MsgPairRequestReceived,
		OriginID: connID,
		Payload: PairRequestPayload{
			OriginStableID: payload.OriginStableID,
			OriginName:     payload.OriginName,
		},
	})
	if !delivered {
		h.logger.Debugw("pair request target not connected",
			"origin", connID,
			"target", payload.TargetConnectionID,
		)
	}
	return nil
}

// handlePairAccepted stores the pair once the requested device accepts. The
// accepting connection sends its own identity and the requester's connection.
func (h *Hub) handlePairAccepted(ctx context.Context, connID domain.ConnectionID, msg InboundMessage) error {
	var payload PairAcceptedPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	selfID := payload.SelfStableID
	selfName := payload.SelfName
	if self, ok := h.registry.Get(connID); ok {
		if selfID == "" {
			selfID = self.StableID
		}
		if selfName == "" {
			selfName = self.DisplayName
		}
	}
	if err := validation.ValidateStableID(string(selfID)); err != nil {
		return err
	}

	partner, ok := h.registry.Get(payload.PartnerConnectionID)
	if !ok {
		return fmt.Errorf("partner %s: %w", payload.PartnerConnectionID, domain.ErrDeviceNotFound)
	}
	if partner.StableID == selfID {
		return domain.ErrSelfPairing
	}

	partnerName := payload.PartnerName
	if partnerName == "" {
		partnerName = partner.DisplayName
	}

	if err := h.pairs.AddPair(ctx, selfID, selfName, partner.StableID, partnerName); err != nil {
		h.logger.Warnw("failed to persist pairing",
			"stable_id", selfID,
			"partner_stable_id", partner.StableID,
			"error", err,
		)
	}

	h.logger.Infow("devices paired", "stable_id", selfID, "partner_stable_id", partner.StableID)

	h.syncPairs(ctx, selfID)
	h.syncPairs(ctx, partner.StableID)
	return nil
}

func (h *Hub) handleRequestUnpair(ctx context.Context, connID domain.ConnectionID, msg InboundMessage) error {
	var payload RequestUnpairPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	originID := payload.OriginStableID
	if originID == "" {
		if self, ok := h.registry.Get(connID); ok {
			originID = self.StableID
		}
	}
	if err := validation.ValidateStableID(string(originID)); err != nil {
		return err
	}
	if err := validation.ValidateStableID(string(payload.TargetStableID)); err != nil {
		return err
	}

	if err := h.pairs.RemovePair(ctx, originID, payload.TargetStableID); err != nil {
		h.logger.Warnw("failed to persist unpairing",
			"stable_id", originID,
			"partner_stable_id", payload.TargetStableID,
			"error", err,
		)
	}

	h.logger.Infow("devices unpaired", "stable_id", originID, "partner_stable_id", payload.TargetStableID)

	h.syncPairs(ctx, originID)
	h.syncPairs(ctx, payload.TargetStableID)
	return nil
}

func (h *Hub) handleAskFollowUp(connID domain.ConnectionID, msg InboundMessage) error {
	var payload AskFollowUpPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if h.scans == nil {
		return fmt.Errorf("follow-up questions are not available")
	}

	cmd := domain.FollowUpCommand{
		Origin:    connID,
		ParentID:  payload.ParentRecordID,
		Prompt:    payload.Prompt,
		Context:   payload.Context,
		Provider:  payload.Provider,
		Model:     payload.Model,
		WebSearch: payload.WebSearch,
	}

	// The provider call can take a while; keep reading this connection.
	return h.Go(func(ctx context.Context) {
		if err := h.scans.FollowUp(ctx, cmd); err != nil {
			h.logger.Debugw("follow-up failed", "connection_id", connID, "record_id", cmd.ParentID, "error", err)
		}
	})
}

func (h *Hub) sendHistory(connID domain.ConnectionID) {
	h.SendTo(connID, domain.OutboundMessage{
		Type:    domain.MsgHistory,
		Payload: h.history.Recent(),
	})
}

// syncPairs pushes the current pair list to every live connection of stableID
func (h *Hub) syncPairs(ctx context.Context, stableID domain.StableID) {
	h.SendToStable(stableID, domain.OutboundMessage{
		Type:    domain.MsgPairedDevicesSync,
		Payload: h.edgesOf(ctx, stableID),
	})
}

func (h *Hub) edgesOf(ctx context.Context, stableID domain.StableID) []domain.PairedDevice {
	edges, err := h.pairs.EdgesOf(ctx, stableID)
	if err != nil {
		h.logger.Warnw("failed to load pairings", "stable_id", stableID, "error", err)
		return []domain.PairedDevice{}
	}
	return edges
}
