package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"

	"lenslink/internal/core/domain"
)

// Inbound message types
const (
	TypeRegister             = "register"
	TypeToggleDeviceType     = "toggleDeviceType"
	TypeCameraStatus         = "cameraStatus"
	TypeRequestRemoteCapture = "requestRemoteCapture"
	TypeSignalOffer          = "signalOffer"
	TypeSignalAnswer         = "signalAnswer"
	TypeSignalICE            = "signalIce"
	TypeRequestStream        = "requestStream"
	TypeStopStream           = "stopStream"
	TypeRequestPair          = "requestPair"
	TypePairAccepted         = "pairAccepted"
	TypeRequestUnpair        = "requestUnpair"
	TypeRequestHistory       = "requestHistory"
	TypeAskFollowUp          = "askFollowUp"
)

// InboundMessage is the envelope every client sends
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RegisterPayload struct {
	StableID    domain.StableID `json:"stableId"`
	DisplayName string          `json:"displayName"`
	IsMobile    bool            `json:"isMobile"`
}

type CameraStatusPayload struct {
	Active bool `json:"active"`
}

// TargetPayload addresses a relay message to one connection
type TargetPayload struct {
	TargetConnectionID domain.ConnectionID `json:"targetConnectionId"`
}

// SessionDescriptionPayload carries an offer or answer. The description is
// opaque to the hub and forwarded as sent.
type SessionDescriptionPayload struct {
	TargetConnectionID domain.ConnectionID `json:"targetConnectionId"`
	SDP                json.RawMessage     `json:"sdp"`
}

type ICECandidatePayload struct {
	TargetConnectionID domain.ConnectionID `json:"targetConnectionId"`
	Candidate          json.RawMessage     `json:"candidate"`
}

type RequestPairPayload struct {
	TargetConnectionID domain.ConnectionID `json:"targetConnectionId"`
	OriginStableID     domain.StableID     `json:"originStableId"`
	OriginName         string              `json:"originName"`
}

type PairAcceptedPayload struct {
	PartnerConnectionID domain.ConnectionID `json:"partnerConnectionId"`
	PartnerName         string              `json:"partnerName"`
	SelfStableID        domain.StableID     `json:"selfStableId"`
	SelfName            string              `json:"selfName"`
}

type RequestUnpairPayload struct {
	OriginStableID domain.StableID `json:"originStableId"`
	TargetStableID domain.StableID `json:"targetStableId"`
}

type AskFollowUpPayload struct {
	ParentRecordID string `json:"parentRecordId"`
	Prompt         string `json:"prompt"`
	Context        string `json:"context"`
	Model          string `json:"model"`
	Provider       string `json:"provider,omitempty"`
	WebSearch      bool   `json:"webSearch"`
}

// Outbound payloads

type ConnectedPayload struct {
	ConnectionID domain.ConnectionID `json:"connectionId"`
}

type RTCConfigPayload struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type PairRequestPayload struct {
	OriginStableID domain.StableID `json:"originStableId"`
	OriginName     string          `json:"originName"`
}

type SDPRelayPayload struct {
	SDP json.RawMessage `json:"sdp"`
}

type ICERelayPayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

// relayTypes maps a signaling kind to the message its target receives
var relayTypes = map[domain.SignalKind]string{
	domain.SignalOffer:          domain.MsgSignalOffer,
	domain.SignalAnswer:         domain.MsgSignalAnswer,
	domain.SignalICE:            domain.MsgSignalICE,
	domain.SignalRequestStream:  domain.MsgRequestStream,
	domain.SignalStopStream:     domain.MsgStopStream,
	domain.SignalTriggerCapture: domain.MsgTriggerCapture,
}
