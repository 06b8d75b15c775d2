package connector

import (
	"cpsys/ocpp/core"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	status    core.ChargePointStatus
	errorCode core.ChargePointErrorCode
	info      string
}

func recordingMachine() (*StateMachine, *[]notification) {
	var notifications []notification
	machine := NewStateMachine(func(status core.ChargePointStatus, errorCode core.ChargePointErrorCode, _ time.Time, info, _, _ string) {
		notifications = append(notifications, notification{status: status, errorCode: errorCode, info: info})
	})
	return machine, &notifications
}

func TestInitialStateIsAvailable(t *testing.T) {
	machine, _ := recordingMachine()
	assert.Equal(t, core.ChargePointStatusAvailable, machine.GetState())
	assert.False(t, machine.IsFaulted())
}

func TestChargingSessionTransitions(t *testing.T) {
	machine, notifications := recordingMachine()
	now := time.Now()

	assert.True(t, machine.HandleEvent(UsageInitiated, now, ""))
	assert.Equal(t, core.ChargePointStatusPreparing, machine.GetState())

	assert.True(t, machine.HandleEvent(StartCharging, now, ""))
	assert.Equal(t, core.ChargePointStatusCharging, machine.GetState())

	assert.True(t, machine.HandleEvent(PauseChargingEV, now, ""))
	assert.Equal(t, core.ChargePointStatusSuspendedEV, machine.GetState())

	assert.True(t, machine.HandleEvent(TransactionStoppedAndUserActionRequired, now, ""))
	assert.Equal(t, core.ChargePointStatusFinishing, machine.GetState())

	assert.True(t, machine.HandleEvent(BecomeAvailable, now, ""))
	assert.Equal(t, core.ChargePointStatusAvailable, machine.GetState())

	require.Len(t, *notifications, 5)
	assert.Equal(t, core.ChargePointStatusCharging, (*notifications)[1].status)
	assert.Equal(t, core.NoError, (*notifications)[1].errorCode)
}

func TestUndefinedTransitionIsNoOp(t *testing.T) {
	machine, notifications := recordingMachine()
	// ReservationEnd is only defined for the Reserved state
	assert.False(t, machine.HandleEvent(ReservationEnd, time.Now(), ""))
	assert.Equal(t, core.ChargePointStatusAvailable, machine.GetState())
	assert.Empty(t, *notifications)
}

func TestFaultOverlayPreservesUnderlyingState(t *testing.T) {
	machine, notifications := recordingMachine()
	now := time.Now()
	require.True(t, machine.HandleEvent(UsageInitiated, now, ""))
	require.True(t, machine.HandleEvent(StartCharging, now, ""))

	raised := machine.HandleError(ErrorInfo{
		Uuid:      "err-1",
		ErrorCode: core.GroundFailure,
		IsFault:   true,
		Info:      "ground fault detected",
		Timestamp: now,
	})
	assert.True(t, raised)
	assert.Equal(t, core.ChargePointStatusFaulted, machine.GetState())
	assert.True(t, machine.IsFaulted())

	last := (*notifications)[len(*notifications)-1]
	assert.Equal(t, core.ChargePointStatusFaulted, last.status)
	assert.Equal(t, core.GroundFailure, last.errorCode)

	// ordinary events are refused while faulted and do not notify
	count := len(*notifications)
	assert.False(t, machine.HandleEvent(PauseChargingEV, now, ""))
	assert.Len(t, *notifications, count)

	// clearing the fault reveals the untouched pre-fault state
	cleared := machine.HandleErrorCleared("err-1")
	assert.True(t, cleared)
	assert.Equal(t, core.ChargePointStatusCharging, machine.GetState())
	last = (*notifications)[len(*notifications)-1]
	assert.Equal(t, core.ChargePointStatusCharging, last.status)
	assert.Equal(t, core.NoError, last.errorCode)
}

func TestReturnEventsLeaveFaultedState(t *testing.T) {
	machine, _ := recordingMachine()
	now := time.Now()
	require.True(t, machine.HandleError(ErrorInfo{Uuid: "err-1", ErrorCode: core.HighTemperature, IsFault: true, Timestamp: now}))
	require.Equal(t, core.ChargePointStatusFaulted, machine.GetState())

	// a ReturnTo event rewrites the underlying state even while the error
	// set still reports Faulted
	assert.True(t, machine.HandleEvent(ReturnToUnavailable, now, ""))
	assert.Equal(t, core.ChargePointStatusFaulted, machine.GetState())

	machine.HandleAllErrorsCleared()
	assert.Equal(t, core.ChargePointStatusUnavailable, machine.GetState())
}

func TestDuplicateErrorUuidIsIgnored(t *testing.T) {
	machine, notifications := recordingMachine()
	now := time.Now()
	assert.True(t, machine.HandleError(ErrorInfo{Uuid: "err-1", ErrorCode: core.OtherError, Timestamp: now}))
	count := len(*notifications)
	assert.False(t, machine.HandleError(ErrorInfo{Uuid: "err-1", ErrorCode: core.OtherError, Timestamp: now}))
	assert.Len(t, *notifications, count)
}

func TestNonFaultErrorKeepsOperationalState(t *testing.T) {
	machine, notifications := recordingMachine()
	now := time.Now()
	require.True(t, machine.HandleEvent(UsageInitiated, now, ""))

	assert.True(t, machine.HandleError(ErrorInfo{Uuid: "err-1", ErrorCode: core.WeakSignal, IsFault: false, Timestamp: now}))
	assert.Equal(t, core.ChargePointStatusPreparing, machine.GetState())
	assert.False(t, machine.IsFaulted())

	last := (*notifications)[len(*notifications)-1]
	assert.Equal(t, core.ChargePointStatusPreparing, last.status)
	assert.Equal(t, core.WeakSignal, last.errorCode)
}

func TestErrorClearedNotifiesOnlyWhenSetBecomesEmpty(t *testing.T) {
	machine, notifications := recordingMachine()
	now := time.Now()
	require.True(t, machine.HandleError(ErrorInfo{Uuid: "err-1", ErrorCode: core.WeakSignal, Timestamp: now}))
	require.True(t, machine.HandleError(ErrorInfo{Uuid: "err-2", ErrorCode: core.OtherError, Timestamp: now.Add(time.Second)}))

	count := len(*notifications)
	assert.False(t, machine.HandleErrorCleared("err-1"))
	assert.Len(t, *notifications, count)

	assert.True(t, machine.HandleErrorCleared("err-2"))
	require.Len(t, *notifications, count+1)
	assert.Equal(t, core.NoError, (*notifications)[count].errorCode)
}

func TestErrorClearedUnknownUuid(t *testing.T) {
	machine, _ := recordingMachine()
	assert.False(t, machine.HandleErrorCleared("missing"))
}

func TestLatestErrorPicksMostRecentTimestamp(t *testing.T) {
	machine, _ := recordingMachine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.True(t, machine.HandleError(ErrorInfo{Uuid: "err-1", ErrorCode: core.WeakSignal, Timestamp: base}))
	require.True(t, machine.HandleError(ErrorInfo{Uuid: "err-2", ErrorCode: core.HighTemperature, Timestamp: base.Add(time.Minute)}))
	require.True(t, machine.HandleError(ErrorInfo{Uuid: "err-3", ErrorCode: core.OtherError, Timestamp: base.Add(time.Minute)}))

	latest := machine.LatestError()
	require.NotNil(t, latest)
	// ties on the timestamp resolve to the earlier insertion
	assert.Equal(t, "err-2", latest.Uuid)
}

func TestTriggerStatusNotificationRepeatsCurrentState(t *testing.T) {
	machine, notifications := recordingMachine()
	now := time.Now()
	require.True(t, machine.HandleError(ErrorInfo{Uuid: "err-1", ErrorCode: core.GroundFailure, IsFault: true, Info: "ground fault", Timestamp: now}))

	machine.TriggerStatusNotification()
	last := (*notifications)[len(*notifications)-1]
	assert.Equal(t, core.ChargePointStatusFaulted, last.status)
	assert.Equal(t, core.GroundFailure, last.errorCode)
	assert.Equal(t, "ground fault", last.info)
}

func TestChargePointStateMachineOnlyTogglesAvailability(t *testing.T) {
	var notifications []notification
	machine := NewChargePointStateMachine(func(status core.ChargePointStatus, errorCode core.ChargePointErrorCode, _ time.Time, info, _, _ string) {
		notifications = append(notifications, notification{status: status, errorCode: errorCode, info: info})
	})

	assert.False(t, machine.HandleEvent(UsageInitiated, time.Now(), ""))
	assert.False(t, machine.HandleEvent(StartCharging, time.Now(), ""))

	assert.True(t, machine.HandleEvent(ChangeAvailabilityToUnavailable, time.Now(), ""))
	assert.Equal(t, core.ChargePointStatusUnavailable, machine.GetState())
	assert.True(t, machine.HandleEvent(BecomeAvailable, time.Now(), ""))
	assert.Equal(t, core.ChargePointStatusAvailable, machine.GetState())
}
