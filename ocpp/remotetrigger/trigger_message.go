package remotetrigger

const TriggerMessageFeatureName = "TriggerMessage"

type MessageTrigger string

const (
	MessageTriggerBootNotification   MessageTrigger = "BootNotification"
	MessageTriggerHeartbeat          MessageTrigger = "Heartbeat"
	MessageTriggerMeterValues        MessageTrigger = "MeterValues"
	MessageTriggerStatusNotification MessageTrigger = "StatusNotification"
)

type TriggerMessageStatus string

const (
	TriggerMessageStatusAccepted       TriggerMessageStatus = "Accepted"
	TriggerMessageStatusRejected       TriggerMessageStatus = "Rejected"
	TriggerMessageStatusNotImplemented TriggerMessageStatus = "NotImplemented"
)

type TriggerMessageRequest struct {
	RequestedMessage MessageTrigger `json:"requestedMessage" validate:"required"`
	ConnectorId      *int           `json:"connectorId,omitempty" validate:"omitempty,gt=0"`
}

type TriggerMessageResponse struct {
	Status TriggerMessageStatus `json:"status"`
}

func (r TriggerMessageRequest) GetFeatureName() string {
	return TriggerMessageFeatureName
}

func (c TriggerMessageResponse) GetFeatureName() string {
	return TriggerMessageFeatureName
}

func NewTriggerMessageResponse(status TriggerMessageStatus) *TriggerMessageResponse {
	return &TriggerMessageResponse{Status: status}
}
