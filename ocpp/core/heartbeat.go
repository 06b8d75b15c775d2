package core

import "cpsys/types"

const HeartbeatFeatureName = "Heartbeat"

type HeartbeatRequest struct {
}

type HeartbeatResponse struct {
	CurrentTime *types.DateTime `json:"currentTime"`
}

func (req HeartbeatRequest) GetFeatureName() string {
	return HeartbeatFeatureName
}

func (res HeartbeatResponse) GetFeatureName() string {
	return HeartbeatFeatureName
}

func NewHeartbeatRequest() *HeartbeatRequest {
	return &HeartbeatRequest{}
}
