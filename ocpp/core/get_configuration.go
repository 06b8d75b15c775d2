package core

const GetConfigurationFeatureName = "GetConfiguration"

type ConfigurationKey struct {
	Key      string  `json:"key" validate:"required,max=50"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty" validate:"omitempty,max=500"`
}

type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty" validate:"omitempty,dive,max=50"`
}

type GetConfigurationResponse struct {
	ConfigurationKey []ConfigurationKey `json:"configurationKey,omitempty"`
	UnknownKey       []string           `json:"unknownKey,omitempty"`
}

func (r GetConfigurationRequest) GetFeatureName() string {
	return GetConfigurationFeatureName
}

func (c GetConfigurationResponse) GetFeatureName() string {
	return GetConfigurationFeatureName
}
