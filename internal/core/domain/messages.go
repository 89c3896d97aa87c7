package domain

// Outbound message types sent by the hub.
const (
	MsgConnected           = "connected"
	MsgDeviceList          = "device_list"
	MsgPairedDevicesSync   = "paired_devices_sync"
	MsgPairRequestReceived = "pair_request_received"
	MsgHistory             = "history"
	MsgRTCConfig           = "rtc_config"
	MsgTriggerCapture      = "trigger_capture"
	MsgSignalOffer         = "signal_offer"
	MsgSignalAnswer        = "signal_answer"
	MsgSignalICE           = "signal_ice"
	MsgRequestStream       = "request_stream"
	MsgStopStream          = "stop_stream"
	MsgScanStarted         = "scan_started"
	MsgScanFailed          = "scan_failed"
	MsgNewAnswer           = "new_answer"
	MsgFollowUpAnswer      = "followup_answer"
	MsgError               = "error"
)

// OutboundMessage is the envelope written to every websocket client.
type OutboundMessage struct {
	Type     string       `json:"type"`
	OriginID ConnectionID `json:"originId,omitempty"`
	Payload  interface{}  `json:"payload,omitempty"`
}

// ErrorMessage builds an error envelope.
func ErrorMessage(message string) OutboundMessage {
	return OutboundMessage{
		Type:    MsgError,
		Payload: map[string]interface{}{"message": message},
	}
}

// ScanStartedPayload tells every client an image is being analyzed.
type ScanStartedPayload struct {
	ImageRef string `json:"imageRef"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type ScanFailedPayload struct {
	Message string `json:"message"`
}

// FollowUpAnswerPayload is the thread entry just appended to ParentRecordID.
type FollowUpAnswerPayload struct {
	ParentRecordID string `json:"parentRecordId"`
	ThreadEntry
}
