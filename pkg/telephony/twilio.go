package telephony

import (
	"encoding/base64"
	"fmt"
)

// Media stream event names used by the telephony provider.
const (
	eventConnected = "connected"
	eventStart     = "start"
	eventMedia     = "media"
	eventMark      = "mark"
	eventClear     = "clear"
	eventStop      = "stop"
)

// wsMessage is one frame of the provider's media stream protocol, in
// both directions. Unused fields stay nil and are omitted on the wire.
type wsMessage struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Start     *startPayload `json:"start,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
	Mark      *markPayload  `json:"mark,omitempty"`
}

// startPayload announces a new media stream for a call.
type startPayload struct {
	CallSid          string            `json:"callSid"`
	StreamSid        string            `json:"streamSid"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// mediaPayload carries one base64 mu-law audio chunk.
type mediaPayload struct {
	Payload string `json:"payload"`
}

// markPayload names a playback position marker.
type markPayload struct {
	Name string `json:"name"`
}

// decodeMedia decodes an inbound media payload to raw mu-law bytes.
func decodeMedia(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("telephony: bad media payload: %w", err)
	}
	return data, nil
}

// mediaMessage wraps synthesized audio for the provider.
func mediaMessage(streamSid string, data []byte) wsMessage {
	return wsMessage{
		Event:     eventMedia,
		StreamSid: streamSid,
		Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(data)},
	}
}

// markMessage asks the provider to report when playback reaches this
// point in the outbound audio.
func markMessage(streamSid, name string) wsMessage {
	return wsMessage{
		Event:     eventMark,
		StreamSid: streamSid,
		Mark:      &markPayload{Name: name},
	}
}

// clearMessage discards any audio the provider has buffered but not yet
// played.
func clearMessage(streamSid string) wsMessage {
	return wsMessage{
		Event:     eventClear,
		StreamSid: streamSid,
	}
}

// connectTwiML answers an incoming call by connecting its audio to the
// media websocket.
func connectTwiML(wsURL, callSid string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s">
            <Parameter name="callSid" value="%s"/>
        </Stream>
    </Connect>
</Response>`, wsURL, callSid)
}

// busyTwiML speaks a short notice and hangs up. Returned when the
// scheduler is at capacity so callers never wait on a dead line.
func busyTwiML(message string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Say>%s</Say>
    <Hangup/>
</Response>`, message)
}
