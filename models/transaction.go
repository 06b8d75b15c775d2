package models

import "time"

type Transaction struct {
	TransactionId int       `json:"transaction_id" bson:"transaction_id"`
	ConnectorId   int       `json:"connector_id" bson:"connector_id"`
	IdTag         string    `json:"id_tag" bson:"id_tag"`
	MeterStart    int       `json:"meter_start" bson:"meter_start"`
	MeterStop     int       `json:"meter_stop" bson:"meter_stop"`
	TimeStart     time.Time `json:"time_start" bson:"time_start"`
	TimeStop      time.Time `json:"time_stop" bson:"time_stop"`
	Reason        string    `json:"reason,omitempty" bson:"reason,omitempty"`
	Finished      bool      `json:"finished" bson:"finished"`
}
