package core

const ResetFeatureName = "Reset"

type ResetType string
type ResetStatus string

const (
	ResetTypeHard       ResetType   = "Hard"
	ResetTypeSoft       ResetType   = "Soft"
	ResetStatusAccepted ResetStatus = "Accepted"
	ResetStatusRejected ResetStatus = "Rejected"
)

type ResetRequest struct {
	Type ResetType `json:"type" validate:"required"`
}

type ResetResponse struct {
	Status ResetStatus `json:"status"`
}

func (r ResetRequest) GetFeatureName() string {
	return ResetFeatureName
}

func (c ResetResponse) GetFeatureName() string {
	return ResetFeatureName
}

func NewResetResponse(status ResetStatus) *ResetResponse {
	return &ResetResponse{Status: status}
}
