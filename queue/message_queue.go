package queue

import (
	"cpsys/internal"
	"cpsys/metrics/counters"
	"cpsys/ocpp"
	"cpsys/ocpp/core"
	"cpsys/utility"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// SendFunc hands a serialized call to the transport; false means the link is
// down and the message was not accepted.
type SendFunc func(data []byte) bool

type Options struct {
	TransactionMessageAttempts      int
	TransactionMessageRetryInterval int // seconds, 0 means immediate retry
	MaxNormalQueueSize              int // 0 means unbounded
}

// MessageQueue serializes outbound calls towards the central system. Normal
// messages are dropped when the link is down, transaction messages are kept
// and retried. At most one message is in flight at any time.
type MessageQueue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	normal      []*ControlMessage
	transaction []*ControlMessage
	inFlight    *ControlMessage

	paused               bool
	running              bool
	newMessage           bool
	awaitingStartHandled bool

	opts                  Options
	stoppedTransactionIds map[string]int

	send   SendFunc
	logger internal.LogHandler
	now    func() time.Time
	done   chan struct{}
}

const featureNameQueue = "MessageQueue"

func NewMessageQueue(opts Options, logger internal.LogHandler, send SendFunc) *MessageQueue {
	q := &MessageQueue{
		paused:                true,
		running:               true,
		opts:                  opts,
		stoppedTransactionIds: make(map[string]int),
		send:                  send,
		logger:                logger,
		now:                   time.Now,
		done:                  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.worker()
	return q
}

// AddNormal appends a message to the normal queue; its outcome is lossy by
// design when the charge point is offline.
func (q *MessageQueue) AddNormal(request ocpp.Request) *ControlMessage {
	message := newControlMessage(request, ClassNormal, q.now())
	q.mu.Lock()
	if q.opts.MaxNormalQueueSize > 0 && len(q.normal) >= q.opts.MaxNormalQueueSize {
		q.dropOldestNormal()
	}
	q.normal = append(q.normal, message)
	q.newMessage = true
	q.mu.Unlock()
	q.cond.Broadcast()
	counters.ObserveQueueDepth(q.Sizes())
	return message
}

// AddTransaction appends a message to the transaction queue; it is retried
// until delivered or until the configured attempts are exhausted.
func (q *MessageQueue) AddTransaction(request ocpp.Request) *ControlMessage {
	message := newControlMessage(request, ClassTransaction, q.now())
	q.mu.Lock()
	q.transaction = append(q.transaction, message)
	q.newMessage = true
	q.mu.Unlock()
	q.cond.Broadcast()
	counters.ObserveQueueDepth(q.Sizes())
	return message
}

// Add routes a request to the matching queue by feature classification.
func (q *MessageQueue) Add(request ocpp.Request) *ControlMessage {
	if IsTransactionMessage(request) {
		return q.AddTransaction(request)
	}
	return q.AddNormal(request)
}

// AddStoppedTransactionId registers a transaction id for a StopTransaction
// message that was queued before the StartTransaction response arrived. The
// id is substituted into the payload at dispatch time.
func (q *MessageQueue) AddStoppedTransactionId(stopMessageUniqueId string, transactionId int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stoppedTransactionIds[stopMessageUniqueId] = transactionId
}

// NotifyStartTransactionHandled releases the transaction queue after a
// StartTransaction outcome has been processed by its consumer. Dispatch of
// the next transaction message is held back between the two, so a
// StopTransaction queued before the StartTransaction response cannot leave
// with an unsubstituted transaction id.
func (q *MessageQueue) NotifyStartTransactionHandled() {
	q.mu.Lock()
	q.awaitingStartHandled = false
	if len(q.normal) > 0 || len(q.transaction) > 0 {
		q.newMessage = true
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *MessageQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *MessageQueue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.newMessage = len(q.normal) > 0 || len(q.transaction) > 0
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Stop terminates the worker and completes every pending promise with an
// aborted outcome, so no caller is left waiting past shutdown.
func (q *MessageQueue) Stop() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.done

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight != nil {
		q.inFlight.complete(CallOutcome{Aborted: true})
		q.inFlight = nil
	}
	for _, message := range q.normal {
		message.complete(CallOutcome{Aborted: true})
	}
	for _, message := range q.transaction {
		message.complete(CallOutcome{Aborted: true})
	}
	q.normal = nil
	q.transaction = nil
}

func (q *MessageQueue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

func (q *MessageQueue) Sizes() (normal int, transaction int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.normal), len(q.transaction)
}

// dropOldestNormal sheds roughly 10% of the normal queue cap, oldest first;
// called with the mutex held.
func (q *MessageQueue) dropOldestNormal() {
	count := q.opts.MaxNormalQueueSize / 10
	if count < 1 {
		count = 1
	}
	if count > len(q.normal) {
		count = len(q.normal)
	}
	q.logger.Warn(fmt.Sprintf("normal message queue full, dropping %d oldest messages", count))
	for i := 0; i < count; i++ {
		q.normal[i].complete(CallOutcome{DeliveryFailed: true})
		counters.CountMessageDropped(q.normal[i].Action())
	}
	q.normal = q.normal[count:]
}

func (q *MessageQueue) worker() {
	defer close(q.done)
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		for q.running && (q.paused || !q.newMessage || q.inFlight != nil) {
			q.cond.Wait()
		}
		if !q.running {
			q.logger.Debug("message queue stopped processing messages")
			return
		}
		if len(q.normal) == 0 && len(q.transaction) == 0 {
			q.newMessage = false
			continue
		}

		now := q.now()
		var message *ControlMessage
		if len(q.normal) > 0 && !q.normal[0].timestamp.After(now) {
			message = q.normal[0]
		}
		if message == nil && !q.awaitingStartHandled && len(q.transaction) > 0 && !q.transaction[0].timestamp.After(now) {
			message = q.transaction[0]
		}
		if message == nil {
			// nothing eligible yet; wake up again at the earliest timestamp
			q.scheduleWake(now)
			q.newMessage = false
			continue
		}

		if message.class == ClassTransaction {
			q.substituteTransactionId(message)
		}

		q.inFlight = message
		data, err := json.Marshal(ocpp.CreateCall(message.request, message.uniqueId))
		if err != nil {
			q.logger.Error(fmt.Sprintf("encoding call %s", message.Action()), err)
			message.complete(CallOutcome{DeliveryFailed: true})
			q.popHead(message)
			q.inFlight = nil
			continue
		}
		q.logger.RawDataEvent("OUT", string(data))

		if !q.send(data) {
			q.paused = true
			q.logger.Warn("could not send message, charge point is most likely offline")
			if message.class == ClassTransaction {
				// kept at the head of the transaction queue for a later retry
				q.inFlight = nil
			} else {
				message.complete(CallOutcome{Offline: true})
				q.normal = q.normal[1:]
				q.inFlight = nil
				counters.CountMessageDropped(message.Action())
			}
		} else {
			q.popHead(message)
			counters.CountMessageSent(message.Action())
		}
		if len(q.normal) == 0 && len(q.transaction) == 0 {
			q.newMessage = false
		}
	}
}

// substituteTransactionId replaces the placeholder transaction id of a
// StopTransaction payload that was queued ahead of the StartTransaction
// response; called with the mutex held.
func (q *MessageQueue) substituteTransactionId(message *ControlMessage) {
	transactionId, ok := q.stoppedTransactionIds[message.uniqueId]
	if !ok {
		return
	}
	if stop, isStop := message.request.(*core.StopTransactionRequest); isStop {
		q.logger.FeatureEvent(featureNameQueue, "", fmt.Sprintf("replacing transaction id with %d", transactionId))
		stop.TransactionId = transactionId
	}
	delete(q.stoppedTransactionIds, message.uniqueId)
}

// popHead removes the message from the front of its queue; called with the
// mutex held.
func (q *MessageQueue) popHead(message *ControlMessage) {
	switch message.class {
	case ClassNormal:
		if len(q.normal) > 0 && q.normal[0] == message {
			q.normal = q.normal[1:]
		}
	case ClassTransaction:
		if len(q.transaction) > 0 && q.transaction[0] == message {
			q.transaction = q.transaction[1:]
		}
	}
}

// scheduleWake arranges a broadcast at the earliest head timestamp across
// both queues; called with the mutex held.
func (q *MessageQueue) scheduleWake(now time.Time) {
	var earliest time.Time
	if len(q.normal) > 0 {
		earliest = q.normal[0].timestamp
	}
	if !q.awaitingStartHandled && len(q.transaction) > 0 {
		if earliest.IsZero() || q.transaction[0].timestamp.Before(earliest) {
			earliest = q.transaction[0].timestamp
		}
	}
	if earliest.IsZero() {
		return
	}
	delay := earliest.Sub(now)
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		q.newMessage = true
		q.mu.Unlock()
		q.cond.Broadcast()
	})
}

// handleCallResult resolves the in-flight message with the received response.
func (q *MessageQueue) handleCallResult(frame *Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		q.logger.Warn(fmt.Sprintf("received CallResult %s without a message in flight", frame.UniqueId))
		return
	}
	if q.inFlight.uniqueId != frame.UniqueId {
		q.logger.Warn(fmt.Sprintf("received CallResult with mismatching unique id: %s != %s", q.inFlight.uniqueId, frame.UniqueId))
		return
	}
	q.popHead(q.inFlight)
	if q.inFlight.Action() == core.StartTransactionFeatureName {
		// hold back the transaction queue until the response consumer has
		// registered a possible transaction id substitution
		q.awaitingStartHandled = true
	}
	q.inFlight.complete(CallOutcome{Response: frame.Payload})
	q.inFlight = nil
	if len(q.normal) > 0 || len(q.transaction) > 0 {
		q.newMessage = true
	}
	q.cond.Broadcast()
}

// handleCallError applies the retry policy: transaction messages are pushed
// back to the head of their queue with a fresh unique id and a linear backoff
// timestamp until the configured attempts are exhausted; normal messages are
// dropped.
func (q *MessageQueue) handleCallError(frame *Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		q.logger.Warn(fmt.Sprintf("received CallError %s without a message in flight", frame.UniqueId))
		return
	}
	if q.inFlight.uniqueId != frame.UniqueId {
		q.logger.Warn(fmt.Sprintf("received CallError with mismatching unique id: %s != %s", q.inFlight.uniqueId, frame.UniqueId))
		return
	}
	message := q.inFlight
	errorInfo := &CallErrorInfo{
		ErrorCode:        frame.ErrorCode,
		ErrorDescription: frame.ErrorDescription,
		ErrorDetails:     frame.ErrorDetails,
	}
	if message.class == ClassTransaction {
		if message.attempts >= q.opts.TransactionMessageAttempts {
			q.logger.Warn(fmt.Sprintf("could not deliver %s within %d attempts, dropping message", message.Action(), q.opts.TransactionMessageAttempts))
			if message.Action() == core.StartTransactionFeatureName {
				q.awaitingStartHandled = true
			}
			message.complete(CallOutcome{CallError: errorInfo, DeliveryFailed: true})
			q.popHead(message)
			counters.CountMessageDropped(message.Action())
		} else {
			message.uniqueId = utility.NewUUID()
			message.attempts++
			if q.opts.TransactionMessageRetryInterval > 0 {
				backoff := time.Duration(q.opts.TransactionMessageRetryInterval*message.attempts) * time.Second
				message.timestamp = q.now().Add(backoff)
			} else {
				message.timestamp = q.now()
			}
			q.transaction = append([]*ControlMessage{message}, q.transaction...)
			q.newMessage = true
			counters.CountMessageRetry(message.Action())
		}
	} else {
		q.logger.Warn(fmt.Sprintf("received CallError for %s, not transaction related, dropping it", message.Action()))
		message.complete(CallOutcome{CallError: errorInfo, DeliveryFailed: true})
		counters.CountMessageDropped(message.Action())
	}
	q.inFlight = nil
	if len(q.normal) > 0 || len(q.transaction) > 0 {
		q.newMessage = true
	}
	q.cond.Broadcast()
}
