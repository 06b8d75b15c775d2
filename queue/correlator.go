package queue

import (
	"cpsys/ocpp"
	"cpsys/utility"
	"encoding/json"
	"fmt"
)

// Frame is a decoded OCPP-J envelope received from the central system.
type Frame struct {
	TypeId           ocpp.CallType
	UniqueId         string
	Action           string
	Payload          json.RawMessage
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// ParseFrame decodes a raw text frame into its envelope fields without
// touching the payload.
func ParseFrame(data []byte) (*Frame, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if len(fields) < 3 {
		return nil, utility.Err("incompatible message structure; expected at least 3 elements")
	}
	var typeId int
	if err := json.Unmarshal(fields[0], &typeId); err != nil {
		return nil, utility.Err("invalid message type id")
	}
	frame := &Frame{TypeId: ocpp.CallType(typeId)}
	if err := json.Unmarshal(fields[1], &frame.UniqueId); err != nil {
		return nil, utility.Err("invalid message unique id")
	}
	switch frame.TypeId {
	case ocpp.CallTypeRequest:
		if len(fields) < 4 {
			return nil, utility.Err("incompatible request structure; expected 4 elements")
		}
		if err := json.Unmarshal(fields[2], &frame.Action); err != nil {
			return nil, utility.Err("invalid action in request")
		}
		frame.Payload = fields[3]
	case ocpp.CallTypeResult:
		frame.Payload = fields[2]
	case ocpp.CallTypeError:
		if err := json.Unmarshal(fields[2], &frame.ErrorCode); err != nil {
			return nil, utility.Err("invalid error code")
		}
		if len(fields) > 3 {
			if err := json.Unmarshal(fields[3], &frame.ErrorDescription); err != nil {
				return nil, utility.Err("invalid error description")
			}
		}
		if len(fields) > 4 {
			frame.ErrorDetails = fields[4]
		}
	default:
		return nil, utility.Err(fmt.Sprintf("unknown message type id: %d", typeId))
	}
	return frame, nil
}

// Receive decodes a raw frame and correlates CallResult and CallError
// messages with the message currently in flight. Incoming Call messages are
// returned to the caller for dispatch. Malformed frames and protocol
// anomalies are logged and swallowed, never propagated.
func (q *MessageQueue) Receive(data []byte) *Frame {
	q.logger.RawDataEvent("IN", string(data))
	frame, err := ParseFrame(data)
	if err != nil {
		q.logger.Error("parsing incoming message", err)
		return nil
	}
	switch frame.TypeId {
	case ocpp.CallTypeResult:
		q.handleCallResult(frame)
	case ocpp.CallTypeError:
		q.handleCallError(frame)
	}
	return frame
}
