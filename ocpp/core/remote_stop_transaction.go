package core

import "cpsys/types"

const RemoteStopTransactionFeatureName = "RemoteStopTransaction"

type RemoteStopTransactionRequest struct {
	TransactionId int `json:"transactionId"`
}

type RemoteStopTransactionResponse struct {
	Status types.RemoteStartStopStatus `json:"status"`
}

func (r RemoteStopTransactionRequest) GetFeatureName() string {
	return RemoteStopTransactionFeatureName
}

func (c RemoteStopTransactionResponse) GetFeatureName() string {
	return RemoteStopTransactionFeatureName
}

func NewRemoteStopTransactionResponse(status types.RemoteStartStopStatus) *RemoteStopTransactionResponse {
	return &RemoteStopTransactionResponse{Status: status}
}
