package ocpp

import (
	"cpsys/ocpp/core"
	"cpsys/ocpp/remotetrigger"
	"cpsys/utility"
	"encoding/json"
	"fmt"
	"reflect"
)

type CallType int

const (
	CallTypeRequest CallType = 2
	CallTypeResult  CallType = 3
	CallTypeError   CallType = 4
)

// Call An OCPP-J Call message, containing an OCPP Request.
type Call struct {
	TypeId   CallType
	UniqueId string
	Action   string
	Payload  Request
}

func (call *Call) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 4)
	fields[0] = int(call.TypeId)
	fields[1] = call.UniqueId
	fields[2] = call.Action
	fields[3] = call.Payload
	return json.Marshal(fields)
}

func CreateCall(request Request, uniqueId string) *Call {
	return &Call{
		TypeId:   CallTypeRequest,
		UniqueId: uniqueId,
		Action:   request.GetFeatureName(),
		Payload:  request,
	}
}

// CallResult An OCPP-J CallResult message, containing an OCPP Response.
type CallResult struct {
	TypeId   CallType
	UniqueId string
	Payload  Response
}

func (callResult *CallResult) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 3)
	fields[0] = int(callResult.TypeId)
	fields[1] = callResult.UniqueId
	fields[2] = callResult.Payload
	return json.Marshal(fields)
}

func CreateCallResult(confirmation Response, uniqueId string) *CallResult {
	return &CallResult{
		TypeId:   CallTypeResult,
		UniqueId: uniqueId,
		Payload:  confirmation,
	}
}

// CallError An OCPP-J CallError message.
type CallError struct {
	TypeId           CallType
	UniqueId         string
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     interface{}
}

func (callError *CallError) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 5)
	fields[0] = int(callError.TypeId)
	fields[1] = callError.UniqueId
	fields[2] = callError.ErrorCode
	fields[3] = callError.ErrorDescription
	if callError.ErrorDetails == nil {
		fields[4] = struct{}{}
	} else {
		fields[4] = callError.ErrorDetails
	}
	return json.Marshal(fields)
}

func CreateCallError(uniqueId, errorCode, errorDescription string) *CallError {
	return &CallError{
		TypeId:           CallTypeError,
		UniqueId:         uniqueId,
		ErrorCode:        errorCode,
		ErrorDescription: errorDescription,
	}
}

// DecodeRequest decodes the payload of an incoming Call initiated by the
// central system into the typed request for the given action.
func DecodeRequest(action string, payload interface{}) (Request, error) {
	requestType, err := getRequestType(action)
	if err != nil {
		return nil, err
	}
	return ParseRawJsonRequest(payload, requestType)
}

func getRequestType(action string) (requestType reflect.Type, err error) {
	switch action {
	case core.RemoteStartTransactionFeatureName:
		requestType = reflect.TypeOf(core.RemoteStartTransactionRequest{})
	case core.RemoteStopTransactionFeatureName:
		requestType = reflect.TypeOf(core.RemoteStopTransactionRequest{})
	case core.ChangeAvailabilityFeatureName:
		requestType = reflect.TypeOf(core.ChangeAvailabilityRequest{})
	case core.ResetFeatureName:
		requestType = reflect.TypeOf(core.ResetRequest{})
	case core.GetConfigurationFeatureName:
		requestType = reflect.TypeOf(core.GetConfigurationRequest{})
	case core.ChangeConfigurationFeatureName:
		requestType = reflect.TypeOf(core.ChangeConfigurationRequest{})
	case core.DataTransferFeatureName:
		requestType = reflect.TypeOf(core.DataTransferRequest{})
	case remotetrigger.TriggerMessageFeatureName:
		requestType = reflect.TypeOf(remotetrigger.TriggerMessageRequest{})
	default:
		return nil, utility.Err(fmt.Sprintf("unsupported action requested: %s", action))
	}
	return requestType, nil
}
