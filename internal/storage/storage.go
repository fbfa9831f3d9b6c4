package storage

import "payflow/internal/model"

// Storage defines a sink for encoded ledger notifications.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}
