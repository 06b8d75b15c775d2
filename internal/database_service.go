package internal

import "cpsys/models"

type Database interface {
	Write(table string, data Data) error
	WriteLogMessage(data Data) error
	ReadLog() (interface{}, error)
	WriteTransaction(transaction *models.Transaction) error
	WriteStatus(status *models.ConnectorStatus) error
}

type Data interface {
	DataType() string
}
