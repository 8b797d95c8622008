package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

var (
	errInvalidFrame = errors.New("protocol: frame is not valid JSON")
	errUntypedFrame = errors.New("protocol: frame has no type")
)

// Encode wraps payload in an Envelope tagged msgType. A nil payload leaves
// the envelope's payload out.
func Encode(msgType MessageType, payload interface{}) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s: %w", msgType, err)
		}
		env.Payload = raw
	}
	return sonic.Marshal(env)
}

// Decode reads the envelope of a frame without decoding its payload.
func Decode(frame []byte) (Envelope, error) {
	if !gjson.ValidBytes(frame) {
		return Envelope{}, errInvalidFrame
	}
	typ := gjson.GetBytes(frame, "type")
	if typ.Type != gjson.String || typ.Str == "" {
		return Envelope{}, errUntypedFrame
	}
	env := Envelope{Type: MessageType(typ.Str)}
	if p := gjson.GetBytes(frame, "payload"); p.Exists() && p.Type != gjson.Null {
		env.Payload = json.RawMessage(p.Raw)
	}
	return env, nil
}

// DecodePayload decodes the payload carried by env into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, fmt.Errorf("protocol: %s frame has no payload", env.Type)
	}
	if err := sonic.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("protocol: decode %s payload: %w", env.Type, err)
	}
	return v, nil
}
