package models

import "time"

// UploadStatus is the lifecycle state of an upload.
type UploadStatus string

const (
	StatusPending    UploadStatus = "pending"
	StatusProcessing UploadStatus = "processing"
	StatusConfirmed  UploadStatus = "confirmed"
	StatusFailed     UploadStatus = "failed"
)

// Valid reports whether s is one of the known states.
func (s UploadStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// Tag is a single name/value pair attached to a network transaction.
type Tag struct {
	Name  string `json:"name" bson:"name"`
	Value string `json:"value" bson:"value"`
}

// Cost is a storage price estimate. AR and Winston are decimal strings so
// that no precision is lost on the way to JSON.
type Cost struct {
	AR      string  `json:"ar" bson:"ar"`
	Winston string  `json:"winston" bson:"winston"`
	USD     float64 `json:"usd" bson:"usd"`
	Bytes   int64   `json:"bytes" bson:"bytes"`
}

// Metadata carries user supplied descriptive fields and the ordered tag list.
type Metadata struct {
	Title       string `json:"title,omitempty" bson:"title,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Tags        []Tag  `json:"tags" bson:"tags"`
}

// Upload is a single upload attempt as tracked by the ledger.
//
// ID is assigned locally and never changes. TransactionID stays empty until
// the storage network accepts the transaction.
type Upload struct {
	ID            string
	TransactionID string
	FileName      string
	FileSize      int64
	FileType      string
	ContentType   string
	UploadedBy    string
	Status        UploadStatus
	Cost          Cost
	Metadata      Metadata
	PermanentURL  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicID is the identifier handed to clients: the network id once known,
// the local id before that.
func (u *Upload) PublicID() string {
	if u.TransactionID != "" {
		return u.TransactionID
	}
	return u.ID
}

// UploadPatch lists the optional fields a status transition may set.
// Nil fields are left untouched.
type UploadPatch struct {
	TransactionID *string
	PermanentURL  *string
}
