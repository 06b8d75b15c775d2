package core

import "cpsys/types"

const ChangeAvailabilityFeatureName = "ChangeAvailability"

type ChangeAvailabilityRequest struct {
	ConnectorId int                    `json:"connectorId" validate:"gte=0"`
	Type        types.AvailabilityType `json:"type" validate:"required"`
}

type ChangeAvailabilityResponse struct {
	Status types.AvailabilityStatus `json:"status"`
}

func (r ChangeAvailabilityRequest) GetFeatureName() string {
	return ChangeAvailabilityFeatureName
}

func (c ChangeAvailabilityResponse) GetFeatureName() string {
	return ChangeAvailabilityFeatureName
}

func NewChangeAvailabilityResponse(status types.AvailabilityStatus) *ChangeAvailabilityResponse {
	return &ChangeAvailabilityResponse{Status: status}
}
