package connector

import (
	"cpsys/ocpp/core"
	"cpsys/utility"
	"fmt"
	"sync"
	"time"
)

// StatusCallback receives status changes of every connector; connector 0
// stands for the whole charge point.
type StatusCallback func(connectorId int, status core.ChargePointStatus, errorCode core.ChargePointErrorCode, timestamp time.Time, info, vendorId, vendorErrorCode string)

// Registry owns one state machine per connector plus one for the charge
// point itself and routes all events under a single mutex. Callbacks are
// invoked while the mutex is held and are expected to be non-blocking.
type Registry struct {
	mu       sync.Mutex
	machines []*StateMachine
	callback StatusCallback
}

func NewRegistry(numberOfConnectors int, callback StatusCallback) *Registry {
	registry := &Registry{callback: callback}
	for connectorId := 0; connectorId <= numberOfConnectors; connectorId++ {
		id := connectorId
		machineCallback := func(status core.ChargePointStatus, errorCode core.ChargePointErrorCode, timestamp time.Time, info, vendorId, vendorErrorCode string) {
			registry.callback(id, status, errorCode, timestamp, info, vendorId, vendorErrorCode)
		}
		if connectorId == 0 {
			registry.machines = append(registry.machines, NewChargePointStateMachine(machineCallback))
		} else {
			registry.machines = append(registry.machines, NewStateMachine(machineCallback))
		}
	}
	return registry
}

// Reset places every machine into its initial state. The charge point state
// (connector 0) is restricted to Available, Unavailable or Faulted; a
// requested Faulted starts from an Available underlying state and expects
// the faults to be submitted as errors afterwards.
func (r *Registry) Reset(initialStates map[int]core.ChargePointStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(initialStates) != len(r.machines) {
		return utility.Err(fmt.Sprintf("number of initial states %d does not match number of state machines %d",
			len(initialStates), len(r.machines)))
	}
	chargePointState := initialStates[0]
	switch chargePointState {
	case core.ChargePointStatusAvailable, core.ChargePointStatusUnavailable, core.ChargePointStatusFaulted:
	default:
		return utility.Err(fmt.Sprintf("invalid initial charge point state: %s", chargePointState))
	}
	for connectorId, machine := range r.machines {
		state := initialStates[connectorId]
		if state == core.ChargePointStatusFaulted {
			state = core.ChargePointStatusAvailable
		}
		machine.state = state
		machine.activeErrors = nil
	}
	return nil
}

func (r *Registry) machine(connectorId int) *StateMachine {
	if connectorId < 0 || connectorId >= len(r.machines) {
		return nil
	}
	return r.machines[connectorId]
}

// SubmitEvent routes a status event; out-of-range connector ids are ignored.
func (r *Registry) SubmitEvent(connectorId int, event Transition, timestamp time.Time, info string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	machine := r.machine(connectorId)
	if machine == nil {
		return false
	}
	return machine.HandleEvent(event, timestamp, info)
}

func (r *Registry) SubmitError(connectorId int, errorInfo ErrorInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	machine := r.machine(connectorId)
	if machine == nil {
		return false
	}
	return machine.HandleError(errorInfo)
}

func (r *Registry) SubmitErrorCleared(connectorId int, uuid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	machine := r.machine(connectorId)
	if machine == nil {
		return false
	}
	return machine.HandleErrorCleared(uuid)
}

func (r *Registry) SubmitAllErrorsCleared(connectorId int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	machine := r.machine(connectorId)
	if machine == nil {
		return false
	}
	return machine.HandleAllErrorsCleared()
}

// GetState returns Unavailable for out-of-range connector ids.
func (r *Registry) GetState(connectorId int) core.ChargePointStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	machine := r.machine(connectorId)
	if machine == nil {
		return core.ChargePointStatusUnavailable
	}
	return machine.GetState()
}

func (r *Registry) GetLatestError(connectorId int) *ErrorInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	machine := r.machine(connectorId)
	if machine == nil {
		return nil
	}
	return machine.LatestError()
}

func (r *Registry) TriggerStatusNotification(connectorId int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if machine := r.machine(connectorId); machine != nil {
		machine.TriggerStatusNotification()
	}
}

func (r *Registry) TriggerStatusNotifications() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, machine := range r.machines {
		machine.TriggerStatusNotification()
	}
}

// NumberOfConnectors reports the number of physical connectors, excluding
// connector 0.
func (r *Registry) NumberOfConnectors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.machines) - 1
}
