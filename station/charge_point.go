package station

import (
	"cpsys/api"
	"cpsys/connector"
	"cpsys/internal"
	"cpsys/internal/config"
	"cpsys/metrics"
	"cpsys/metrics/counters"
	"cpsys/models"
	"cpsys/ocpp"
	"cpsys/ocpp/core"
	"cpsys/ocpp/remotetrigger"
	"cpsys/queue"
	"cpsys/telegram"
	"cpsys/types"
	"cpsys/utility"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const featureNameStation = "ChargePoint"

// pendingTransactionId marks a transaction whose StartTransaction response
// has not arrived yet.
const pendingTransactionId = -1

// ChargePoint wires the message queue, the connector state machines and the
// ws transport into one charge point facing a single central system.
type ChargePoint struct {
	conf     *config.Config
	logger   *internal.Logger
	database internal.Database
	client   *Client
	queue    *queue.MessageQueue
	states   *connector.Registry
	bot      *telegram.Bot

	mu            sync.Mutex
	registered    bool
	transactions  map[int]*models.Transaction
	pendingStops  map[int]string
	heartbeatStop chan struct{}
}

func NewChargePoint() (*ChargePoint, error) {
	conf, err := config.GetConfig()
	if err != nil {
		return nil, err
	}

	logger := internal.NewLogger(conf.ChargePoint.Id)
	if conf.IsDebug != nil {
		logger.SetDebugMode(*conf.IsDebug)
	}

	chargePoint := &ChargePoint{
		conf:         conf,
		logger:       logger,
		transactions: make(map[int]*models.Transaction),
		pendingStops: make(map[int]string),
	}

	mongo, err := internal.NewMongoClient(conf)
	if err != nil {
		logger.Error("mongodb client initialization failed", err)
	}
	if mongo != nil {
		chargePoint.database = mongo
		logger.SetDatabase(mongo)
	}

	bot, err := telegram.NewBot(conf, logger)
	if err != nil {
		logger.Error("telegram bot initialization failed", err)
	}
	chargePoint.bot = bot

	chargePoint.client = NewClient(conf, logger)
	chargePoint.queue = queue.NewMessageQueue(queue.Options{
		TransactionMessageAttempts:      conf.Queue.TransactionMessageAttempts,
		TransactionMessageRetryInterval: conf.Queue.TransactionMessageRetryInterval,
		MaxNormalQueueSize:              conf.Queue.MaxNormalQueueSize,
	}, logger, chargePoint.client.Send)
	chargePoint.states = connector.NewRegistry(conf.ChargePoint.Connectors, chargePoint.onStatusChange)

	chargePoint.client.SetMessageHandler(chargePoint.handleIncomingMessage)
	chargePoint.client.SetConnectHandler(chargePoint.onConnect)
	chargePoint.client.SetDisconnectHandler(chargePoint.onDisconnect)
	return chargePoint, nil
}

func (cp *ChargePoint) Start() {
	go func() {
		if err := metrics.Listen(cp.conf); err != nil {
			cp.logger.Error("metrics server failed", err)
		}
	}()
	go func() {
		server := api.NewServer(cp.conf, cp.logger, cp.database, cp)
		if err := server.Listen(); err != nil {
			cp.logger.Error("api server failed", err)
		}
	}()
	cp.client.Start()
}

func (cp *ChargePoint) Stop() {
	cp.stopHeartbeat()
	cp.client.Stop()
	cp.queue.Stop()
	cp.bot.Stop()
}

// onConnect resumes the outbound queue and starts the registration flow. The
// head of the transaction queue, if any survived the offline period, is
// retransmitted with its original unique id.
func (cp *ChargePoint) onConnect() {
	cp.queue.Resume()
	go cp.bootNotification()
}

func (cp *ChargePoint) onDisconnect() {
	cp.queue.Pause()
	cp.stopHeartbeat()
	cp.mu.Lock()
	cp.registered = false
	cp.mu.Unlock()
}

func (cp *ChargePoint) bootNotification() {
	request := &core.BootNotificationRequest{
		ChargePointVendor:       cp.conf.ChargePoint.Vendor,
		ChargePointModel:        cp.conf.ChargePoint.Model,
		ChargePointSerialNumber: cp.conf.ChargePoint.SerialNumber,
		FirmwareVersion:         cp.conf.ChargePoint.FirmwareVersion,
	}
	message := cp.queue.AddNormal(request)
	outcome := <-message.Promise()
	if outcome.Response == nil {
		cp.logger.Warn("boot notification was not answered")
		return
	}
	var response core.BootNotificationResponse
	if err := json.Unmarshal(outcome.Response, &response); err != nil {
		cp.logger.Error("decoding boot notification response", err)
		return
	}
	switch response.Status {
	case core.RegistrationStatusAccepted:
		cp.mu.Lock()
		cp.registered = true
		cp.mu.Unlock()
		interval := response.Interval
		if interval <= 0 {
			interval = cp.conf.CentralSystem.HeartbeatInterval
		}
		cp.logger.FeatureEvent(featureNameStation, "", fmt.Sprintf("registered with central system; heartbeat interval %ds", interval))
		cp.startHeartbeat(interval)
		cp.states.TriggerStatusNotifications()
	default:
		retryAfter := response.Interval
		if retryAfter <= 0 {
			retryAfter = 60
		}
		cp.logger.Warn(fmt.Sprintf("registration %s; next boot notification in %ds", response.Status, retryAfter))
		time.AfterFunc(time.Duration(retryAfter)*time.Second, func() {
			if cp.client.IsConnected() {
				cp.bootNotification()
			}
		})
	}
}

func (cp *ChargePoint) startHeartbeat(intervalSeconds int) {
	cp.stopHeartbeat()
	stop := make(chan struct{})
	cp.mu.Lock()
	cp.heartbeatStop = stop
	cp.mu.Unlock()
	go func() {
		ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cp.queue.AddNormal(core.NewHeartbeatRequest())
			}
		}
	}()
}

func (cp *ChargePoint) stopHeartbeat() {
	cp.mu.Lock()
	if cp.heartbeatStop != nil {
		close(cp.heartbeatStop)
		cp.heartbeatStop = nil
	}
	cp.mu.Unlock()
}

// onStatusChange converts every state machine notification into a
// StatusNotification towards the central system. Invoked with the registry
// mutex held, so everything slow runs detached.
func (cp *ChargePoint) onStatusChange(connectorId int, status core.ChargePointStatus, errorCode core.ChargePointErrorCode, timestamp time.Time, info, vendorId, vendorErrorCode string) {
	request := &core.StatusNotificationRequest{
		ConnectorId:     connectorId,
		ErrorCode:       errorCode,
		Info:            info,
		Status:          status,
		Timestamp:       types.NewDateTime(timestamp),
		VendorId:        vendorId,
		VendorErrorCode: vendorErrorCode,
	}
	cp.queue.AddNormal(request)
	counters.CountStatusNotification(strconv.Itoa(connectorId), string(status))
	cp.logger.FeatureEvent(core.StatusNotificationFeatureName, "", fmt.Sprintf("connector %d is %s (%s)", connectorId, status, errorCode))
	if status == core.ChargePointStatusFaulted {
		cp.bot.Notify(fmt.Sprintf("%s: connector %d faulted: %s %s", cp.conf.ChargePoint.Id, connectorId, errorCode, info))
	}
	if cp.database != nil {
		record := &models.ConnectorStatus{
			ConnectorId: connectorId,
			Status:      string(status),
			ErrorCode:   string(errorCode),
			Info:        info,
			TimeStamp:   timestamp,
		}
		go func() {
			if err := cp.database.WriteStatus(record); err != nil {
				cp.logger.Error("writing connector status", err)
			}
		}()
	}
}

// handleIncomingMessage feeds every received frame through the queue
// correlator and dispatches the requests initiated by the central system.
func (cp *ChargePoint) handleIncomingMessage(data []byte) {
	frame := cp.queue.Receive(data)
	if frame == nil || frame.TypeId != ocpp.CallTypeRequest {
		return
	}
	var rawPayload interface{}
	if err := json.Unmarshal(frame.Payload, &rawPayload); err != nil {
		cp.logger.Error("decoding request payload", err)
		cp.sendCallError(frame.UniqueId, "FormationViolation", err.Error())
		return
	}
	request, err := ocpp.DecodeRequest(frame.Action, rawPayload)
	if err != nil {
		cp.logger.Error(fmt.Sprintf("handling %s", frame.Action), err)
		cp.sendCallError(frame.UniqueId, "NotImplemented", err.Error())
		return
	}

	var response ocpp.Response
	switch typed := request.(type) {
	case *core.RemoteStartTransactionRequest:
		response = cp.onRemoteStartTransaction(typed)
	case *core.RemoteStopTransactionRequest:
		response = cp.onRemoteStopTransaction(typed)
	case *core.ChangeAvailabilityRequest:
		response = cp.onChangeAvailability(typed)
	case *remotetrigger.TriggerMessageRequest:
		response = cp.onTriggerMessage(typed)
	case *core.ResetRequest:
		response = cp.onReset(typed)
	case *core.GetConfigurationRequest:
		response = cp.onGetConfiguration(typed)
	case *core.ChangeConfigurationRequest:
		response = cp.onChangeConfiguration(typed)
	case *core.DataTransferRequest:
		response = core.NewDataTransferResponse(core.DataTransferStatusUnknownVendorId)
	default:
		cp.sendCallError(frame.UniqueId, "NotSupported", fmt.Sprintf("no handler for %s", frame.Action))
		return
	}
	cp.sendCallResult(frame.UniqueId, response)
}

func (cp *ChargePoint) sendCallResult(uniqueId string, response ocpp.Response) {
	data, err := json.Marshal(ocpp.CreateCallResult(response, uniqueId))
	if err != nil {
		cp.logger.Error("encoding call result", err)
		return
	}
	cp.logger.RawDataEvent("OUT", string(data))
	if !cp.client.Send(data) {
		cp.logger.Warn("could not send call result, connection is down")
	}
}

func (cp *ChargePoint) sendCallError(uniqueId, errorCode, description string) {
	data, err := json.Marshal(ocpp.CreateCallError(uniqueId, errorCode, description))
	if err != nil {
		cp.logger.Error("encoding call error", err)
		return
	}
	cp.logger.RawDataEvent("OUT", string(data))
	if !cp.client.Send(data) {
		cp.logger.Warn("could not send call error, connection is down")
	}
}

func (cp *ChargePoint) onRemoteStartTransaction(request *core.RemoteStartTransactionRequest) ocpp.Response {
	connectorId := 1
	if request.ConnectorId != nil {
		connectorId = *request.ConnectorId
	}
	state := cp.states.GetState(connectorId)
	if state != core.ChargePointStatusAvailable && state != core.ChargePointStatusPreparing {
		return core.NewRemoteStartTransactionResponse(types.RemoteStartStopStatusRejected)
	}
	go func() {
		if err := cp.StartTransaction(connectorId, request.IdTag, 0); err != nil {
			cp.logger.Error("remote start transaction", err)
		}
	}()
	return core.NewRemoteStartTransactionResponse(types.RemoteStartStopStatusAccepted)
}

func (cp *ChargePoint) onRemoteStopTransaction(request *core.RemoteStopTransactionRequest) ocpp.Response {
	cp.mu.Lock()
	connectorId := 0
	for id, transaction := range cp.transactions {
		if transaction.TransactionId == request.TransactionId {
			connectorId = id
			break
		}
	}
	cp.mu.Unlock()
	if connectorId == 0 {
		return core.NewRemoteStopTransactionResponse(types.RemoteStartStopStatusRejected)
	}
	go func() {
		if err := cp.StopTransaction(connectorId, 0, core.ReasonRemote); err != nil {
			cp.logger.Error("remote stop transaction", err)
		}
	}()
	return core.NewRemoteStopTransactionResponse(types.RemoteStartStopStatusAccepted)
}

func (cp *ChargePoint) onChangeAvailability(request *core.ChangeAvailabilityRequest) ocpp.Response {
	event := connector.BecomeAvailable
	if request.Type == types.AvailabilityTypeInoperative {
		event = connector.ChangeAvailabilityToUnavailable
	}
	var targets []int
	if request.ConnectorId == 0 {
		for connectorId := 0; connectorId <= cp.states.NumberOfConnectors(); connectorId++ {
			targets = append(targets, connectorId)
		}
	} else {
		targets = append(targets, request.ConnectorId)
	}
	accepted := true
	for _, connectorId := range targets {
		if !cp.states.SubmitEvent(connectorId, event, time.Now(), "") {
			accepted = false
		}
	}
	if accepted {
		return core.NewChangeAvailabilityResponse(types.AvailabilityStatusAccepted)
	}
	return core.NewChangeAvailabilityResponse(types.AvailabilityStatusScheduled)
}

func (cp *ChargePoint) onTriggerMessage(request *remotetrigger.TriggerMessageRequest) ocpp.Response {
	switch request.RequestedMessage {
	case remotetrigger.MessageTriggerHeartbeat:
		go cp.queue.AddNormal(core.NewHeartbeatRequest())
		return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusAccepted)
	case remotetrigger.MessageTriggerBootNotification:
		go cp.bootNotification()
		return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusAccepted)
	case remotetrigger.MessageTriggerStatusNotification:
		if request.ConnectorId != nil {
			connectorId := *request.ConnectorId
			go cp.states.TriggerStatusNotification(connectorId)
		} else {
			go cp.states.TriggerStatusNotifications()
		}
		return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusAccepted)
	default:
		return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusNotImplemented)
	}
}

// onReset accepts the reset, stops every running transaction with the
// matching reason and leaves the actual restart to the process supervisor.
func (cp *ChargePoint) onReset(request *core.ResetRequest) ocpp.Response {
	reason := core.ReasonSoftReset
	if request.Type == core.ResetTypeHard {
		reason = core.ReasonHardReset
	}
	go func() {
		cp.mu.Lock()
		var connectorIds []int
		for connectorId := range cp.transactions {
			connectorIds = append(connectorIds, connectorId)
		}
		cp.mu.Unlock()
		for _, connectorId := range connectorIds {
			if err := cp.StopTransaction(connectorId, 0, reason); err != nil {
				cp.logger.Error("stopping transaction on reset", err)
			}
		}
		cp.logger.FeatureEvent(core.ResetFeatureName, "", fmt.Sprintf("%s reset requested, restart delegated to supervisor", request.Type))
	}()
	return core.NewResetResponse(core.ResetStatusAccepted)
}

func (cp *ChargePoint) configurationKeys() []core.ConfigurationKey {
	value := func(v int) *string {
		s := strconv.Itoa(v)
		return &s
	}
	return []core.ConfigurationKey{
		{Key: "HeartbeatInterval", Readonly: false, Value: value(cp.conf.CentralSystem.HeartbeatInterval)},
		{Key: "NumberOfConnectors", Readonly: true, Value: value(cp.conf.ChargePoint.Connectors)},
		{Key: "TransactionMessageAttempts", Readonly: true, Value: value(cp.conf.Queue.TransactionMessageAttempts)},
		{Key: "TransactionMessageRetryInterval", Readonly: true, Value: value(cp.conf.Queue.TransactionMessageRetryInterval)},
	}
}

func (cp *ChargePoint) onGetConfiguration(request *core.GetConfigurationRequest) ocpp.Response {
	known := cp.configurationKeys()
	if len(request.Key) == 0 {
		return &core.GetConfigurationResponse{ConfigurationKey: known}
	}
	response := &core.GetConfigurationResponse{}
	for _, requested := range request.Key {
		found := false
		for _, key := range known {
			if key.Key == requested {
				response.ConfigurationKey = append(response.ConfigurationKey, key)
				found = true
				break
			}
		}
		if !found {
			response.UnknownKey = append(response.UnknownKey, requested)
		}
	}
	return response
}

func (cp *ChargePoint) onChangeConfiguration(request *core.ChangeConfigurationRequest) ocpp.Response {
	switch request.Key {
	case "HeartbeatInterval":
		interval := utility.ToInt(request.Value)
		if interval <= 0 {
			return &core.ChangeConfigurationResponse{Status: core.ConfigurationStatusRejected}
		}
		cp.conf.CentralSystem.HeartbeatInterval = interval
		cp.startHeartbeat(interval)
		return &core.ChangeConfigurationResponse{Status: core.ConfigurationStatusAccepted}
	case "NumberOfConnectors", "TransactionMessageAttempts", "TransactionMessageRetryInterval":
		return &core.ChangeConfigurationResponse{Status: core.ConfigurationStatusRejected}
	}
	return &core.ChangeConfigurationResponse{Status: core.ConfigurationStatusNotSupported}
}

// Authorize asks the central system whether the id tag may charge; blocks
// until the call is resolved.
func (cp *ChargePoint) Authorize(idTag string) (*types.IdTagInfo, error) {
	message := cp.queue.AddNormal(core.NewAuthorizeRequest(idTag))
	outcome := <-message.Promise()
	if outcome.Response == nil {
		return nil, utility.Err(fmt.Sprintf("authorize %s not delivered", idTag))
	}
	var response core.AuthorizeResponse
	if err := json.Unmarshal(outcome.Response, &response); err != nil {
		return nil, err
	}
	return response.IdTagInfo, nil
}

// StartTransaction begins charging on a connector. The transaction id stays
// pending until the StartTransaction response arrives; a StopTransaction
// queued in the meantime gets the real id substituted at dispatch time.
func (cp *ChargePoint) StartTransaction(connectorId int, idTag string, meterStart int) error {
	cp.mu.Lock()
	if _, busy := cp.transactions[connectorId]; busy {
		cp.mu.Unlock()
		return utility.Err(fmt.Sprintf("connector %d already has a running transaction", connectorId))
	}
	transaction := &models.Transaction{
		TransactionId: pendingTransactionId,
		ConnectorId:   connectorId,
		IdTag:         idTag,
		MeterStart:    meterStart,
		TimeStart:     time.Now(),
	}
	cp.transactions[connectorId] = transaction
	cp.mu.Unlock()

	cp.states.SubmitEvent(connectorId, connector.UsageInitiated, time.Now(), "")
	request := &core.StartTransactionRequest{
		ConnectorId: connectorId,
		IdTag:       idTag,
		MeterStart:  meterStart,
		Timestamp:   types.NewDateTime(transaction.TimeStart),
	}
	message := cp.queue.AddTransaction(request)
	cp.states.SubmitEvent(connectorId, connector.StartCharging, time.Now(), "")
	go cp.awaitStartOutcome(connectorId, transaction, message)
	return nil
}

func (cp *ChargePoint) awaitStartOutcome(connectorId int, transaction *models.Transaction, message *queue.ControlMessage) {
	outcome := <-message.Promise()
	// the transaction queue is held back until the outcome, including a
	// possible stop id substitution, has been processed here
	defer cp.queue.NotifyStartTransactionHandled()
	if outcome.Response == nil {
		cp.logger.Warn(fmt.Sprintf("start transaction on connector %d was not delivered", connectorId))
		cp.mu.Lock()
		delete(cp.transactions, connectorId)
		delete(cp.pendingStops, connectorId)
		cp.mu.Unlock()
		cp.states.SubmitEvent(connectorId, connector.BecomeAvailable, time.Now(), "")
		return
	}
	var response core.StartTransactionResponse
	if err := json.Unmarshal(outcome.Response, &response); err != nil {
		cp.logger.Error("decoding start transaction response", err)
		return
	}
	cp.mu.Lock()
	transaction.TransactionId = response.TransactionId
	record := *transaction
	stopUniqueId, stopPending := cp.pendingStops[connectorId]
	delete(cp.pendingStops, connectorId)
	cp.mu.Unlock()
	if stopPending {
		cp.queue.AddStoppedTransactionId(stopUniqueId, response.TransactionId)
	}
	cp.logger.FeatureEvent(core.StartTransactionFeatureName, "", fmt.Sprintf("transaction %d started on connector %d", response.TransactionId, connectorId))
	if cp.database != nil {
		if err := cp.database.WriteTransaction(&record); err != nil {
			cp.logger.Error("writing transaction", err)
		}
	}
	if response.IdTagInfo != nil && response.IdTagInfo.Status != types.AuthorizationStatusAccepted {
		cp.logger.Warn(fmt.Sprintf("id tag %s is %s, stopping transaction %d", record.IdTag, response.IdTagInfo.Status, response.TransactionId))
		if err := cp.StopTransaction(connectorId, record.MeterStart, core.ReasonDeAuthorized); err != nil {
			cp.logger.Error("stopping deauthorized transaction", err)
		}
	}
}

// StopTransaction ends the charging session on a connector. The request may
// be queued before the transaction id is known; in that case the pending stop
// is registered for id substitution.
func (cp *ChargePoint) StopTransaction(connectorId int, meterStop int, reason core.Reason) error {
	cp.mu.Lock()
	transaction, ok := cp.transactions[connectorId]
	if !ok {
		cp.mu.Unlock()
		return utility.Err(fmt.Sprintf("connector %d has no running transaction", connectorId))
	}
	delete(cp.transactions, connectorId)
	transactionId := transaction.TransactionId
	pending := transactionId == pendingTransactionId
	if pending {
		transactionId = 0
	}
	request := &core.StopTransactionRequest{
		IdTag:         transaction.IdTag,
		MeterStop:     meterStop,
		Timestamp:     types.NewDateTime(time.Now()),
		TransactionId: transactionId,
		Reason:        reason,
	}
	// enqueue and register under the same lock section, so the start outcome
	// either sees the pending stop or had already published the real id
	message := cp.queue.AddTransaction(request)
	if pending {
		cp.pendingStops[connectorId] = message.UniqueId()
	}
	cp.mu.Unlock()

	cp.states.SubmitEvent(connectorId, connector.TransactionStoppedAndUserActionRequired, time.Now(), "")
	go cp.awaitStopOutcome(transaction, meterStop, reason, message)
	return nil
}

func (cp *ChargePoint) awaitStopOutcome(transaction *models.Transaction, meterStop int, reason core.Reason, message *queue.ControlMessage) {
	outcome := <-message.Promise()
	// awaitStartOutcome may still be writing the transaction id
	cp.mu.Lock()
	if outcome.Response == nil {
		transactionId := transaction.TransactionId
		cp.mu.Unlock()
		cp.logger.Warn(fmt.Sprintf("stop of transaction %d was not delivered", transactionId))
		return
	}
	transaction.MeterStop = meterStop
	transaction.TimeStop = time.Now()
	transaction.Reason = string(reason)
	transaction.Finished = true
	record := *transaction
	cp.mu.Unlock()
	cp.logger.FeatureEvent(core.StopTransactionFeatureName, "", fmt.Sprintf("transaction %d stopped (%s)", record.TransactionId, reason))
	if cp.database != nil {
		if err := cp.database.WriteTransaction(&record); err != nil {
			cp.logger.Error("writing transaction", err)
		}
	}
}

// SendMeterValues reports a sampled energy register value for a connector.
func (cp *ChargePoint) SendMeterValues(connectorId int, meterValue int) {
	cp.mu.Lock()
	var transactionId *int
	if transaction, ok := cp.transactions[connectorId]; ok && transaction.TransactionId != pendingTransactionId {
		id := transaction.TransactionId
		transactionId = &id
	}
	cp.mu.Unlock()
	request := &core.MeterValuesRequest{
		ConnectorId:   connectorId,
		TransactionId: transactionId,
		MeterValue: []types.MeterValue{{
			Timestamp: types.NewDateTime(time.Now()),
			SampledValue: []types.SampledValue{{
				Value:     strconv.Itoa(meterValue),
				Context:   types.ReadingContextSamplePeriodic,
				Measurand: types.MeasurandEnergyActiveImportRegister,
				Unit:      types.UnitOfMeasureWh,
			}},
		}},
	}
	cp.queue.AddTransaction(request)
}

// PlugIn reports a cable plugged into a connector.
func (cp *ChargePoint) PlugIn(connectorId int) bool {
	return cp.states.SubmitEvent(connectorId, connector.UsageInitiated, time.Now(), "")
}

// PlugOut reports a cable removed from a connector.
func (cp *ChargePoint) PlugOut(connectorId int) bool {
	return cp.states.SubmitEvent(connectorId, connector.BecomeAvailable, time.Now(), "")
}

// RaiseError reports a new connector error and returns its uuid, used later
// to clear it.
func (cp *ChargePoint) RaiseError(connectorId int, errorCode core.ChargePointErrorCode, isFault bool, info string) string {
	errorInfo := connector.ErrorInfo{
		Uuid:      utility.NewUUID(),
		ErrorCode: errorCode,
		IsFault:   isFault,
		Info:      info,
		Timestamp: time.Now(),
	}
	cp.states.SubmitError(connectorId, errorInfo)
	return errorInfo.Uuid
}

func (cp *ChargePoint) ClearError(connectorId int, uuid string) bool {
	return cp.states.SubmitErrorCleared(connectorId, uuid)
}

func (cp *ChargePoint) ClearAllErrors(connectorId int) bool {
	return cp.states.SubmitAllErrorsCleared(connectorId)
}

func (cp *ChargePoint) IsOnline() bool {
	return cp.client.IsConnected()
}

func (cp *ChargePoint) IsRegistered() bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.registered
}

func (cp *ChargePoint) QueueSizes() (normal int, transaction int) {
	return cp.queue.Sizes()
}

// ConnectorStatuses is a snapshot of every connector, including connector 0,
// for the local api.
func (cp *ChargePoint) ConnectorStatuses() []models.ConnectorStatus {
	var statuses []models.ConnectorStatus
	for connectorId := 0; connectorId <= cp.states.NumberOfConnectors(); connectorId++ {
		status := models.ConnectorStatus{
			ConnectorId: connectorId,
			Status:      string(cp.states.GetState(connectorId)),
			ErrorCode:   string(core.NoError),
			TimeStamp:   time.Now(),
		}
		if latest := cp.states.GetLatestError(connectorId); latest != nil {
			status.ErrorCode = string(latest.ErrorCode)
			status.Info = latest.Info
			status.TimeStamp = latest.Timestamp
		}
		statuses = append(statuses, status)
	}
	return statuses
}
