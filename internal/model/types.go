package model

import "time"

// QueueStatus is the delivery state of a QueueItem.
// Transitions are monotonic: pending -> complete, never back.
type QueueStatus string

const (
	QueuePending  QueueStatus = "pending"
	QueueComplete QueueStatus = "complete"
)

// DefaultKind is the payload kind used when a caller does not name one.
const DefaultKind = "xml"

// QueueItem is one outbound payload held in the durable queue.
type QueueItem struct {
	ID          int64       `json:"id"`
	Payload     string      `json:"payload"`
	Kind        string      `json:"kind"`
	Status      QueueStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Client is a registered edge installation.
//
// Token is issued once on first registration and never changes.
// It is excluded from JSON so listings cannot leak it.
type Client struct {
	ClientID        string     `json:"client_id"`
	CompanyName     string     `json:"company_name,omitempty"`
	Token           string     `json:"-"`
	LastSync        *time.Time `json:"last_sync,omitempty"`
	LastTallyAccess *time.Time `json:"last_tally_access,omitempty"`
}

// DataType is the declared format of an uploaded payload.
type DataType string

const (
	DataTypeJSON DataType = "json"
	DataTypeXML  DataType = "xml"
)

// Valid reports whether d is a known data type.
func (d DataType) Valid() bool {
	return d == DataTypeJSON || d == DataTypeXML
}

// TaskStatus is the admission state of an uploaded document.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRejected TaskStatus = "rejected"
)

// Task is an uploaded document recorded by the backend.
//
// MissingFields is non-empty exactly when Status is TaskRejected.
type Task struct {
	ID            int64      `json:"id"`
	ClientID      string     `json:"client_id"`
	VoucherData   string     `json:"voucher_data"`
	DataType      DataType   `json:"data_type"`
	Status        TaskStatus `json:"status"`
	MissingFields string     `json:"missing_fields,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
