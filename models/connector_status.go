package models

import "time"

type ConnectorStatus struct {
	ConnectorId int       `json:"connector_id" bson:"connector_id"`
	Status      string    `json:"status" bson:"status"`
	ErrorCode   string    `json:"error_code" bson:"error_code"`
	Info        string    `json:"info,omitempty" bson:"info,omitempty"`
	TimeStamp   time.Time `json:"timestamp" bson:"timestamp"`
}
