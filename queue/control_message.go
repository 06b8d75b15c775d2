package queue

import (
	"cpsys/ocpp"
	"cpsys/ocpp/core"
	"cpsys/utility"
	"encoding/json"
	"time"
)

type Class int

const (
	ClassNormal Class = iota
	ClassTransaction
)

// CallErrorInfo carries the error fields of a received CallError message.
type CallErrorInfo struct {
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// CallOutcome is the final result of a queued call, delivered exactly once
// through the control message promise.
type CallOutcome struct {
	UniqueId       string
	Action         string
	Response       json.RawMessage
	CallError      *CallErrorInfo
	Offline        bool
	DeliveryFailed bool
	Aborted        bool
}

// ControlMessage is a single outbound call waiting in one of the queues or in
// flight towards the central system.
type ControlMessage struct {
	uniqueId  string
	request   ocpp.Request
	class     Class
	timestamp time.Time
	attempts  int
	promise   chan CallOutcome
	completed bool
}

func newControlMessage(request ocpp.Request, class Class, timestamp time.Time) *ControlMessage {
	return &ControlMessage{
		uniqueId:  utility.NewUUID(),
		request:   request,
		class:     class,
		timestamp: timestamp,
		promise:   make(chan CallOutcome, 1),
	}
}

func (m *ControlMessage) UniqueId() string {
	return m.uniqueId
}

func (m *ControlMessage) Action() string {
	return m.request.GetFeatureName()
}

// Promise delivers the call outcome; it receives exactly one value over the
// lifetime of the message.
func (m *ControlMessage) Promise() <-chan CallOutcome {
	return m.promise
}

// complete fulfills the promise; callers must hold the queue mutex.
func (m *ControlMessage) complete(outcome CallOutcome) {
	if m.completed {
		return
	}
	m.completed = true
	outcome.UniqueId = m.uniqueId
	outcome.Action = m.request.GetFeatureName()
	m.promise <- outcome
}

// IsTransactionMessage reports whether a feature carries billing-relevant
// transaction data and therefore must not be dropped while offline.
func IsTransactionMessage(request ocpp.Request) bool {
	switch request.GetFeatureName() {
	case core.StartTransactionFeatureName, core.StopTransactionFeatureName, core.MeterValuesFeatureName:
		return true
	}
	return false
}
