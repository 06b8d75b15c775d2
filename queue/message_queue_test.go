package queue

import (
	"cpsys/ocpp"
	"cpsys/ocpp/core"
	"cpsys/types"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (l *testLogger) FeatureEvent(_, _, _ string) {}
func (l *testLogger) Debug(_ string)              {}
func (l *testLogger) Warn(_ string)               {}
func (l *testLogger) Error(_ string, _ error)     {}
func (l *testLogger) RawDataEvent(_, _ string)    {}

func testOptions() Options {
	return Options{
		TransactionMessageAttempts:      3,
		TransactionMessageRetryInterval: 10,
	}
}

type sentCall struct {
	uniqueId string
	action   string
	payload  json.RawMessage
}

func parseSentCall(t *testing.T, data []byte) sentCall {
	t.Helper()
	var fields []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Len(t, fields, 4)
	var typeId int
	require.NoError(t, json.Unmarshal(fields[0], &typeId))
	require.Equal(t, int(ocpp.CallTypeRequest), typeId)
	call := sentCall{payload: fields[3]}
	require.NoError(t, json.Unmarshal(fields[1], &call.uniqueId))
	require.NoError(t, json.Unmarshal(fields[2], &call.action))
	return call
}

func waitSend(t *testing.T, sent chan []byte) sentCall {
	t.Helper()
	select {
	case data := <-sent:
		return parseSentCall(t, data)
	case <-time.After(2 * time.Second):
		t.Fatal("no message dispatched")
		return sentCall{}
	}
}

func waitOutcome(t *testing.T, message *ControlMessage) CallOutcome {
	t.Helper()
	select {
	case outcome := <-message.Promise():
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("promise was not fulfilled")
		return CallOutcome{}
	}
}

func callResultFrame(uniqueId string) []byte {
	return []byte(fmt.Sprintf(`[3,"%s",{}]`, uniqueId))
}

func callErrorFrame(uniqueId string) []byte {
	return []byte(fmt.Sprintf(`[4,"%s","InternalError","failure",{}]`, uniqueId))
}

func startTransactionRequest() *core.StartTransactionRequest {
	return &core.StartTransactionRequest{
		ConnectorId: 1,
		IdTag:       "ABC123",
		MeterStart:  0,
		Timestamp:   types.NewDateTime(time.Now()),
	}
}

func TestQueueStartsPaused(t *testing.T) {
	q := NewMessageQueue(testOptions(), &testLogger{}, func([]byte) bool { return true })
	defer q.Stop()
	assert.True(t, q.IsPaused())
}

func TestNormalPreemptsTransaction(t *testing.T) {
	sent := make(chan []byte, 10)
	q := NewMessageQueue(testOptions(), &testLogger{}, func(data []byte) bool {
		sent <- data
		return true
	})
	defer q.Stop()

	q.AddTransaction(startTransactionRequest())
	q.AddNormal(&core.HeartbeatRequest{})
	q.Resume()

	first := waitSend(t, sent)
	assert.Equal(t, core.HeartbeatFeatureName, first.action)
	q.Receive(callResultFrame(first.uniqueId))

	second := waitSend(t, sent)
	assert.Equal(t, core.StartTransactionFeatureName, second.action)
}

func TestCallResultFulfillsPromise(t *testing.T) {
	sent := make(chan []byte, 10)
	q := NewMessageQueue(testOptions(), &testLogger{}, func(data []byte) bool {
		sent <- data
		return true
	})
	defer q.Stop()

	message := q.AddNormal(&core.HeartbeatRequest{})
	q.Resume()
	call := waitSend(t, sent)
	q.Receive(callResultFrame(call.uniqueId))

	outcome := waitOutcome(t, message)
	assert.Equal(t, call.uniqueId, outcome.UniqueId)
	assert.NotNil(t, outcome.Response)
	assert.False(t, outcome.DeliveryFailed)
}

func TestOfflineDropsNormalMessage(t *testing.T) {
	q := NewMessageQueue(testOptions(), &testLogger{}, func([]byte) bool { return false })
	defer q.Stop()

	message := q.AddNormal(&core.HeartbeatRequest{})
	q.Resume()

	outcome := waitOutcome(t, message)
	assert.True(t, outcome.Offline)
	assert.True(t, q.IsPaused())
	normal, _ := q.Sizes()
	assert.Equal(t, 0, normal)
}

func TestOfflineKeepsTransactionMessageAtHead(t *testing.T) {
	sent := make(chan []byte, 10)
	online := false
	q := NewMessageQueue(testOptions(), &testLogger{}, func(data []byte) bool {
		if !online {
			return false
		}
		sent <- data
		return true
	})
	defer q.Stop()

	q.AddTransaction(startTransactionRequest())
	q.Resume()

	require.Eventually(t, q.IsPaused, 2*time.Second, 10*time.Millisecond)
	_, transaction := q.Sizes()
	assert.Equal(t, 1, transaction)
	q.mu.Lock()
	firstUniqueId := q.transaction[0].uniqueId
	q.mu.Unlock()

	online = true
	q.Resume()
	call := waitSend(t, sent)
	// same message, same unique id after reconnecting
	assert.Equal(t, firstUniqueId, call.uniqueId)
	assert.Equal(t, core.StartTransactionFeatureName, call.action)
}

func TestCallErrorRetriesTransactionWithBackoff(t *testing.T) {
	q := NewMessageQueue(testOptions(), &testLogger{}, func([]byte) bool { return true })
	defer q.Stop()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return base }

	message := newControlMessage(startTransactionRequest(), ClassTransaction, base)
	originalUniqueId := message.uniqueId
	q.mu.Lock()
	q.inFlight = message
	q.mu.Unlock()

	q.handleCallError(&Frame{TypeId: ocpp.CallTypeError, UniqueId: originalUniqueId, ErrorCode: "InternalError"})

	q.mu.Lock()
	defer q.mu.Unlock()
	require.Len(t, q.transaction, 1)
	requeued := q.transaction[0]
	assert.NotEqual(t, originalUniqueId, requeued.uniqueId)
	assert.Equal(t, 1, requeued.attempts)
	assert.Equal(t, base.Add(10*time.Second), requeued.timestamp)
	assert.Nil(t, q.inFlight)
	assert.False(t, message.completed)
}

func TestCallErrorBackoffGrowsLinearly(t *testing.T) {
	q := NewMessageQueue(testOptions(), &testLogger{}, func([]byte) bool { return true })
	defer q.Stop()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return base }

	message := newControlMessage(startTransactionRequest(), ClassTransaction, base)
	message.attempts = 1
	q.mu.Lock()
	q.inFlight = message
	q.mu.Unlock()

	q.handleCallError(&Frame{TypeId: ocpp.CallTypeError, UniqueId: message.uniqueId, ErrorCode: "InternalError"})

	q.mu.Lock()
	defer q.mu.Unlock()
	require.Len(t, q.transaction, 1)
	assert.Equal(t, 2, q.transaction[0].attempts)
	assert.Equal(t, base.Add(20*time.Second), q.transaction[0].timestamp)
}

func TestCallErrorExhaustsTransactionAttempts(t *testing.T) {
	q := NewMessageQueue(testOptions(), &testLogger{}, func([]byte) bool { return true })
	defer q.Stop()

	message := newControlMessage(startTransactionRequest(), ClassTransaction, time.Now())
	message.attempts = 3
	q.mu.Lock()
	q.inFlight = message
	q.mu.Unlock()

	q.handleCallError(&Frame{TypeId: ocpp.CallTypeError, UniqueId: message.uniqueId, ErrorCode: "InternalError", ErrorDescription: "gone"})

	outcome := waitOutcome(t, message)
	assert.True(t, outcome.DeliveryFailed)
	require.NotNil(t, outcome.CallError)
	assert.Equal(t, "InternalError", outcome.CallError.ErrorCode)
	assert.Equal(t, "gone", outcome.CallError.ErrorDescription)
	_, transaction := q.Sizes()
	assert.Equal(t, 0, transaction)
}

func TestCallErrorDropsNormalMessage(t *testing.T) {
	q := NewMessageQueue(testOptions(), &testLogger{}, func([]byte) bool { return true })
	defer q.Stop()

	message := newControlMessage(&core.HeartbeatRequest{}, ClassNormal, time.Now())
	q.mu.Lock()
	q.inFlight = message
	q.mu.Unlock()

	q.handleCallError(&Frame{TypeId: ocpp.CallTypeError, UniqueId: message.uniqueId, ErrorCode: "InternalError"})

	outcome := waitOutcome(t, message)
	assert.True(t, outcome.DeliveryFailed)
	require.NotNil(t, outcome.CallError)
}

func TestMismatchedUniqueIdIsIgnored(t *testing.T) {
	q := NewMessageQueue(testOptions(), &testLogger{}, func([]byte) bool { return true })
	defer q.Stop()

	message := newControlMessage(&core.HeartbeatRequest{}, ClassNormal, time.Now())
	q.mu.Lock()
	q.inFlight = message
	q.mu.Unlock()

	q.handleCallResult(&Frame{TypeId: ocpp.CallTypeResult, UniqueId: "some-other-id", Payload: []byte(`{}`)})

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Same(t, message, q.inFlight)
	assert.False(t, message.completed)
}

func TestTransactionIdSubstitution(t *testing.T) {
	sent := make(chan []byte, 10)
	q := NewMessageQueue(testOptions(), &testLogger{}, func(data []byte) bool {
		sent <- data
		return true
	})
	defer q.Stop()

	stop := &core.StopTransactionRequest{
		MeterStop:     1500,
		Timestamp:     types.NewDateTime(time.Now()),
		TransactionId: 0,
	}
	message := q.AddTransaction(stop)
	q.AddStoppedTransactionId(message.UniqueId(), 42)
	q.Resume()

	call := waitSend(t, sent)
	var payload core.StopTransactionRequest
	require.NoError(t, json.Unmarshal(call.payload, &payload))
	assert.Equal(t, 42, payload.TransactionId)

	q.mu.Lock()
	assert.Empty(t, q.stoppedTransactionIds)
	q.mu.Unlock()
}

func TestStopQueuedBeforeStartResultGetsSubstitutedId(t *testing.T) {
	sent := make(chan []byte, 10)
	q := NewMessageQueue(testOptions(), &testLogger{}, func(data []byte) bool {
		sent <- data
		return true
	})
	defer q.Stop()

	start := q.AddTransaction(startTransactionRequest())
	stop := q.AddTransaction(&core.StopTransactionRequest{
		MeterStop: 1200,
		Timestamp: types.NewDateTime(time.Now()),
	})
	q.Resume()

	first := waitSend(t, sent)
	require.Equal(t, core.StartTransactionFeatureName, first.action)
	q.Receive([]byte(fmt.Sprintf(`[3,"%s",{"transactionId":42,"idTagInfo":{"status":"Accepted"}}]`, first.uniqueId)))

	outcome := waitOutcome(t, start)
	var startResponse core.StartTransactionResponse
	require.NoError(t, json.Unmarshal(outcome.Response, &startResponse))
	assert.Equal(t, 42, startResponse.TransactionId)

	// the transaction queue is held back until the outcome consumer has
	// registered the substitution and reported back
	select {
	case data := <-sent:
		t.Fatalf("message dispatched before the start response was handled: %s", data)
	case <-time.After(100 * time.Millisecond):
	}

	q.AddStoppedTransactionId(stop.UniqueId(), 42)
	q.NotifyStartTransactionHandled()

	second := waitSend(t, sent)
	require.Equal(t, core.StopTransactionFeatureName, second.action)
	var stopPayload core.StopTransactionRequest
	require.NoError(t, json.Unmarshal(second.payload, &stopPayload))
	assert.Equal(t, 42, stopPayload.TransactionId)
}

func TestStopCompletesPendingPromises(t *testing.T) {
	q := NewMessageQueue(testOptions(), &testLogger{}, func([]byte) bool { return true })

	normal := q.AddNormal(&core.HeartbeatRequest{})
	transaction := q.AddTransaction(startTransactionRequest())
	q.Stop()

	assert.True(t, waitOutcome(t, normal).Aborted)
	assert.True(t, waitOutcome(t, transaction).Aborted)
}

func TestNormalQueueOverflowDropsOldest(t *testing.T) {
	opts := testOptions()
	opts.MaxNormalQueueSize = 10
	q := NewMessageQueue(opts, &testLogger{}, func([]byte) bool { return true })
	defer q.Stop()

	var first *ControlMessage
	for i := 0; i < 11; i++ {
		message := q.AddNormal(&core.HeartbeatRequest{})
		if i == 0 {
			first = message
		}
	}

	outcome := waitOutcome(t, first)
	assert.True(t, outcome.DeliveryFailed)
	normal, _ := q.Sizes()
	assert.Equal(t, 10, normal)
}

func TestIsTransactionMessage(t *testing.T) {
	assert.True(t, IsTransactionMessage(&core.StartTransactionRequest{}))
	assert.True(t, IsTransactionMessage(&core.StopTransactionRequest{}))
	assert.True(t, IsTransactionMessage(&core.MeterValuesRequest{}))
	assert.False(t, IsTransactionMessage(&core.HeartbeatRequest{}))
	assert.False(t, IsTransactionMessage(&core.BootNotificationRequest{}))
}
