package txip

import (
	"encoding/json"
	"fmt"

	"github.com/txbridge/engine/pkg/clock"
)

// Envelope is the wire shape every txip message travels in (spec.md
// §6). Payload is kept as raw JSON so that Encode/Decode is an exact
// round trip: a decoded envelope re-encodes to byte-identical JSON
// without this package needing to canonicalize the payload variant it
// does not itself own semantically.
type Envelope struct {
	TxipVersion string `json:"txip_version"`
	MsgID       string `json:"msg_id"`
	SessionID   string `json:"session_id"`

	Direction Direction `json:"direction"`
	Role      Role      `json:"role"`

	TimestampMono uint64 `json:"timestamp_mono"`
	TimestampUnix uint64 `json:"timestamp_unix"`
	TimestampISO  string `json:"timestamp_iso"`

	MessageType MessageType `json:"message_type"`
	TgpPhase    TgpPhase    `json:"tgp_phase"`
	TgpType     *string     `json:"tgp_type,omitempty"`

	OriginChainID *uint64 `json:"origin_chain_id,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// New builds an envelope with the given header fields and the
// already-marshaled payload, stamping the timestamp from ts.
func New(msgID, sessionID string, dir Direction, role Role, ts clock.Timestamp, msgType MessageType, phase TgpPhase, payload json.RawMessage) Envelope {
	return Envelope{
		TxipVersion:   ProtocolVersion,
		MsgID:         msgID,
		SessionID:     sessionID,
		Direction:     dir,
		Role:          role,
		TimestampMono: ts.Mono,
		TimestampUnix: ts.Unix,
		TimestampISO:  ts.ISO,
		MessageType:   msgType,
		TgpPhase:      phase,
		Payload:       payload,
	}
}

// NewControl builds a CONTROL envelope carrying payload.
func NewControl(msgID, sessionID string, dir Direction, role Role, ts clock.Timestamp, payload ControlPayload) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("txip: marshal control payload: %w", err)
	}
	return New(msgID, sessionID, dir, role, ts, MessageTypeControl, TgpPhaseNone, raw), nil
}

// NewTgp builds a TGP envelope for the given phase carrying payload.
func NewTgp(msgID, sessionID string, dir Direction, role Role, ts clock.Timestamp, phase TgpPhase, payload TgpPayload) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("txip: marshal tgp payload: %w", err)
	}
	return New(msgID, sessionID, dir, role, ts, MessageTypeTgp, phase, raw), nil
}

// NewError builds an ERROR envelope carrying payload.
func NewError(msgID, sessionID string, dir Direction, role Role, ts clock.Timestamp, payload ErrorMessage) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("txip: marshal error payload: %w", err)
	}
	return New(msgID, sessionID, dir, role, ts, MessageTypeError, TgpPhaseNone, raw), nil
}

// Encode serializes env to its canonical wire form.
func Encode(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("txip: encode envelope: %w", err)
	}
	return b, nil
}

// Decode parses an envelope off the wire. It does not itself validate
// the envelope; callers combine it with Validate.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("txip: decode envelope: %w", err)
	}
	return env, nil
}

// DecodeControlPayload decodes env's payload as a CONTROL variant, failing if
// env.MessageType is not CONTROL.
func (env Envelope) DecodeControlPayload() (ControlPayload, error) {
	if env.MessageType != MessageTypeControl {
		return ControlPayload{}, ErrPayloadMismatch
	}
	var p ControlPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return ControlPayload{}, fmt.Errorf("txip: decode control payload: %w", err)
	}
	return p, nil
}

// DecodeTgpPayload decodes env's payload as a TGP variant, failing if
// env.MessageType is not TGP.
func (env Envelope) DecodeTgpPayload() (TgpPayload, error) {
	if env.MessageType != MessageTypeTgp {
		return TgpPayload{}, ErrPayloadMismatch
	}
	var p TgpPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return TgpPayload{}, fmt.Errorf("txip: decode tgp payload: %w", err)
	}
	return p, nil
}

// DecodeErrorPayload decodes env's payload as an ERROR variant, failing
// if env.MessageType is not ERROR.
func (env Envelope) DecodeErrorPayload() (ErrorMessage, error) {
	if env.MessageType != MessageTypeError {
		return ErrorMessage{}, ErrPayloadMismatch
	}
	var p ErrorMessage
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return ErrorMessage{}, fmt.Errorf("txip: decode error payload: %w", err)
	}
	return p, nil
}
