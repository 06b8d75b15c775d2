package core

import "cpsys/types"

const AuthorizeFeatureName = "Authorize"

type AuthorizeRequest struct {
	IdTag string `json:"idTag" validate:"required,max=20"`
}

type AuthorizeResponse struct {
	IdTagInfo *types.IdTagInfo `json:"idTagInfo"`
}

func (r AuthorizeRequest) GetFeatureName() string {
	return AuthorizeFeatureName
}

func (c AuthorizeResponse) GetFeatureName() string {
	return AuthorizeFeatureName
}

func NewAuthorizeRequest(idTag string) *AuthorizeRequest {
	return &AuthorizeRequest{IdTag: idTag}
}
