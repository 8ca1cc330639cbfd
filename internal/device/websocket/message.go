package websocket

import (
	"encoding/json"
	"fmt"

	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/presence"
)

type MessageType string

const (
	TypeUser      MessageType = "user"
	TypeOpenApp   MessageType = "openApp"
	TypeRemoveApp MessageType = "removeApp"

	TypeExpired MessageType = "expired"
	TypeWarning MessageType = "warning"
	TypeReboot  MessageType = "reboot"
	TypeError   MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

// WSMessage is an inbound device frame.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ExpiredEvent() presence.Event {
	return presence.Event{Type: TypeExpired.String()}
}

func WarningEvent(days int) presence.Event {
	return presence.Event{Type: TypeWarning.String(), Payload: days}
}

func RebootEvent() presence.Event {
	return presence.Event{Type: TypeReboot.String()}
}

func ErrorEvent(err commonerrors.DomainError) presence.Event {
	return presence.Event{
		Type:    TypeError.String(),
		Payload: ErrorPayload{Code: err.Code(), Message: err.Message()},
	}
}

func marshalEvent(event presence.Event) ([]byte, error) {
	data, err := json.Marshal(outboundMessage{Type: event.Type, Payload: event.Payload})
	if err != nil {
		return nil, commonerrors.ErrMarshalError.WithCause(err)
	}
	return data, nil
}

func unmarshalStringPayload(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", commonerrors.ErrInvalidPayload.WithCause(fmt.Errorf("missing payload"))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", commonerrors.ErrInvalidPayload.WithCause(err)
	}
	if s == "" {
		return "", commonerrors.ErrInvalidPayload.WithCause(fmt.Errorf("empty payload"))
	}
	return s, nil
}
