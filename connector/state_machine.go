package connector

import (
	"cpsys/ocpp/core"
	"time"
)

// Transition is a connector status event as defined by the OCPP 1.6 status
// transition matrix.
type Transition int

const (
	UsageInitiated Transition = iota
	StartCharging
	PauseChargingEV
	PauseChargingEVSE
	ReserveConnector
	ChangeAvailabilityToUnavailable
	BecomeAvailable
	TransactionStoppedAndUserActionRequired
	ReservationEnd
	ReturnToAvailable
	ReturnToPreparing
	ReturnToCharging
	ReturnToSuspendedEV
	ReturnToSuspendedEVSE
	ReturnToFinishing
	ReturnToReserved
	ReturnToUnavailable
)

// ErrorInfo is one active error of a connector, keyed by uuid. Errors with
// IsFault set drive the connector into the Faulted state.
type ErrorInfo struct {
	Uuid            string
	ErrorCode       core.ChargePointErrorCode
	IsFault         bool
	Info            string
	VendorId        string
	VendorErrorCode string
	Timestamp       time.Time
}

// NotificationCallback receives every status change worth a
// StatusNotification towards the central system.
type NotificationCallback func(status core.ChargePointStatus, errorCode core.ChargePointErrorCode, timestamp time.Time, info, vendorId, vendorErrorCode string)

type transitionTable map[core.ChargePointStatus]map[Transition]core.ChargePointStatus

var fullTable = transitionTable{
	core.ChargePointStatusAvailable: {
		UsageInitiated:                  core.ChargePointStatusPreparing,
		StartCharging:                   core.ChargePointStatusCharging,
		PauseChargingEV:                 core.ChargePointStatusSuspendedEV,
		PauseChargingEVSE:               core.ChargePointStatusSuspendedEVSE,
		ReserveConnector:                core.ChargePointStatusReserved,
		ChangeAvailabilityToUnavailable: core.ChargePointStatusUnavailable,
	},
	core.ChargePointStatusPreparing: {
		BecomeAvailable:                         core.ChargePointStatusAvailable,
		StartCharging:                           core.ChargePointStatusCharging,
		PauseChargingEV:                         core.ChargePointStatusSuspendedEV,
		PauseChargingEVSE:                       core.ChargePointStatusSuspendedEVSE,
		TransactionStoppedAndUserActionRequired: core.ChargePointStatusFinishing,
	},
	core.ChargePointStatusCharging: {
		BecomeAvailable:                         core.ChargePointStatusAvailable,
		PauseChargingEV:                         core.ChargePointStatusSuspendedEV,
		PauseChargingEVSE:                       core.ChargePointStatusSuspendedEVSE,
		TransactionStoppedAndUserActionRequired: core.ChargePointStatusFinishing,
		ChangeAvailabilityToUnavailable:         core.ChargePointStatusUnavailable,
	},
	core.ChargePointStatusSuspendedEV: {
		BecomeAvailable:                         core.ChargePointStatusAvailable,
		StartCharging:                           core.ChargePointStatusCharging,
		PauseChargingEVSE:                       core.ChargePointStatusSuspendedEVSE,
		TransactionStoppedAndUserActionRequired: core.ChargePointStatusFinishing,
		ChangeAvailabilityToUnavailable:         core.ChargePointStatusUnavailable,
	},
	core.ChargePointStatusSuspendedEVSE: {
		BecomeAvailable:                         core.ChargePointStatusAvailable,
		StartCharging:                           core.ChargePointStatusCharging,
		PauseChargingEV:                         core.ChargePointStatusSuspendedEV,
		TransactionStoppedAndUserActionRequired: core.ChargePointStatusFinishing,
		ChangeAvailabilityToUnavailable:         core.ChargePointStatusUnavailable,
	},
	core.ChargePointStatusFinishing: {
		BecomeAvailable:                 core.ChargePointStatusAvailable,
		UsageInitiated:                  core.ChargePointStatusPreparing,
		ChangeAvailabilityToUnavailable: core.ChargePointStatusUnavailable,
	},
	core.ChargePointStatusReserved: {
		BecomeAvailable:                 core.ChargePointStatusAvailable,
		UsageInitiated:                  core.ChargePointStatusPreparing,
		ChangeAvailabilityToUnavailable: core.ChargePointStatusUnavailable,
		ReservationEnd:                  core.ChargePointStatusAvailable,
	},
	core.ChargePointStatusUnavailable: {
		BecomeAvailable:   core.ChargePointStatusAvailable,
		UsageInitiated:    core.ChargePointStatusPreparing,
		StartCharging:     core.ChargePointStatusCharging,
		PauseChargingEV:   core.ChargePointStatusSuspendedEV,
		PauseChargingEVSE: core.ChargePointStatusSuspendedEVSE,
	},
	core.ChargePointStatusFaulted: {
		ReturnToAvailable:     core.ChargePointStatusAvailable,
		ReturnToPreparing:     core.ChargePointStatusPreparing,
		ReturnToCharging:      core.ChargePointStatusCharging,
		ReturnToSuspendedEV:   core.ChargePointStatusSuspendedEV,
		ReturnToSuspendedEVSE: core.ChargePointStatusSuspendedEVSE,
		ReturnToFinishing:     core.ChargePointStatusFinishing,
		ReturnToReserved:      core.ChargePointStatusReserved,
		ReturnToUnavailable:   core.ChargePointStatusUnavailable,
	},
}

// connector 0 represents the whole charge point and only toggles availability
var reducedTable = transitionTable{
	core.ChargePointStatusAvailable: {
		ChangeAvailabilityToUnavailable: core.ChargePointStatusUnavailable,
	},
	core.ChargePointStatusUnavailable: {
		BecomeAvailable: core.ChargePointStatusAvailable,
	},
	core.ChargePointStatusFaulted: {
		ReturnToAvailable:   core.ChargePointStatusAvailable,
		ReturnToUnavailable: core.ChargePointStatusUnavailable,
	},
}

// StateMachine tracks the operational state of one connector together with
// its set of active errors. It is not safe for concurrent use on its own;
// all access goes through the Registry mutex.
type StateMachine struct {
	state        core.ChargePointStatus
	table        transitionTable
	activeErrors []ErrorInfo
	callback     NotificationCallback
	now          func() time.Time
}

func NewStateMachine(callback NotificationCallback) *StateMachine {
	return &StateMachine{
		state:    core.ChargePointStatusAvailable,
		table:    fullTable,
		callback: callback,
		now:      time.Now,
	}
}

func NewChargePointStateMachine(callback NotificationCallback) *StateMachine {
	machine := NewStateMachine(callback)
	machine.table = reducedTable
	return machine
}

// GetState returns Faulted while any active error is a hard fault, otherwise
// the underlying operational state.
func (s *StateMachine) GetState() core.ChargePointStatus {
	if s.IsFaulted() {
		return core.ChargePointStatusFaulted
	}
	return s.state
}

func (s *StateMachine) IsFaulted() bool {
	for i := range s.activeErrors {
		if s.activeErrors[i].IsFault {
			return true
		}
	}
	return false
}

// LatestError returns the active error with the most recent timestamp; equal
// timestamps resolve to the first inserted.
func (s *StateMachine) LatestError() *ErrorInfo {
	var latest *ErrorInfo
	for i := range s.activeErrors {
		if latest == nil || s.activeErrors[i].Timestamp.After(latest.Timestamp) {
			latest = &s.activeErrors[i]
		}
	}
	return latest
}

func (s *StateMachine) latestErrorCode() core.ChargePointErrorCode {
	if latest := s.LatestError(); latest != nil {
		return latest.ErrorCode
	}
	return core.NoError
}

// HandleEvent looks up the transition for the effective state. Unknown
// pairs are a no-op. While faulted, only the ReturnTo* events are valid and
// the status callback stays suppressed until the faults clear.
func (s *StateMachine) HandleEvent(event Transition, timestamp time.Time, info string) bool {
	row, ok := s.table[s.GetState()]
	if !ok {
		return false
	}
	next, ok := row[event]
	if !ok {
		return false
	}
	s.state = next
	if !s.IsFaulted() {
		s.callback(next, s.latestErrorCode(), timestamp, info, "", "")
	}
	return true
}

// HandleError registers a new active error; a uuid already tracked is
// ignored. The notification reports Faulted when the error set contains a
// hard fault, otherwise the current state.
func (s *StateMachine) HandleError(errorInfo ErrorInfo) bool {
	for i := range s.activeErrors {
		if s.activeErrors[i].Uuid == errorInfo.Uuid {
			return false
		}
	}
	s.activeErrors = append(s.activeErrors, errorInfo)
	status := s.state
	if s.IsFaulted() {
		status = core.ChargePointStatusFaulted
	}
	s.callback(status, errorInfo.ErrorCode, errorInfo.Timestamp, errorInfo.Info, errorInfo.VendorId, errorInfo.VendorErrorCode)
	return true
}

// HandleErrorCleared removes one error by uuid. A NoError notification is
// emitted only when the last active error is gone; the return value reports
// whether a notification was sent.
func (s *StateMachine) HandleErrorCleared(uuid string) bool {
	found := false
	for i := range s.activeErrors {
		if s.activeErrors[i].Uuid == uuid {
			s.activeErrors = append(s.activeErrors[:i], s.activeErrors[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if len(s.activeErrors) > 0 || s.IsFaulted() {
		return false
	}
	s.callback(s.state, core.NoError, s.now(), "", "", "")
	return true
}

// HandleAllErrorsCleared drops the whole active-error set and always emits a
// NoError notification at the underlying state.
func (s *StateMachine) HandleAllErrorsCleared() bool {
	s.activeErrors = nil
	s.callback(s.state, core.NoError, s.now(), "", "", "")
	return true
}

// TriggerStatusNotification re-emits the current effective state without
// changing anything.
func (s *StateMachine) TriggerStatusNotification() {
	if latest := s.LatestError(); latest != nil {
		s.callback(s.GetState(), latest.ErrorCode, s.now(), latest.Info, latest.VendorId, latest.VendorErrorCode)
		return
	}
	s.callback(s.GetState(), core.NoError, s.now(), "", "", "")
}
