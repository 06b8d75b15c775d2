package core

import "cpsys/types"

const RemoteStartTransactionFeatureName = "RemoteStartTransaction"

type RemoteStartTransactionRequest struct {
	ConnectorId *int   `json:"connectorId,omitempty" validate:"omitempty,gt=0"`
	IdTag       string `json:"idTag" validate:"required,max=20"`
}

type RemoteStartTransactionResponse struct {
	Status types.RemoteStartStopStatus `json:"status"`
}

func (r RemoteStartTransactionRequest) GetFeatureName() string {
	return RemoteStartTransactionFeatureName
}

func (c RemoteStartTransactionResponse) GetFeatureName() string {
	return RemoteStartTransactionFeatureName
}

func NewRemoteStartTransactionResponse(status types.RemoteStartStopStatus) *RemoteStartTransactionResponse {
	return &RemoteStartTransactionResponse{Status: status}
}
