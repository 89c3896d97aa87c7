package domain

import "encoding/json"

type SignalKind string

const (
	SignalOffer          SignalKind = "offer"
	SignalAnswer         SignalKind = "answer"
	SignalICE            SignalKind = "ice"
	SignalRequestStream  SignalKind = "requestStream"
	SignalStopStream     SignalKind = "stopStream"
	SignalTriggerCapture SignalKind = "triggerCapture"
)

// SignalingEnvelope is a point-to-point message in flight through the relay.
// Payload is forwarded as-is.
type SignalingEnvelope struct {
	Origin  ConnectionID
	Target  ConnectionID
	Kind    SignalKind
	Payload json.RawMessage
}
