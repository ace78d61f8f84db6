package integration

import (
	"encoding/json"

	"github.com/google/uuid"
)

// SyncStatus represents the outcome of a pull synchronization
type SyncStatus string

const (
	// SyncStatusSuccess indicates every chat was stored
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusPartial indicates some chats failed
	SyncStatusPartial SyncStatus = "PARTIAL"
	// SyncStatusFailed indicates nothing could be synchronized
	SyncStatusFailed SyncStatus = "FAILED"
)

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// SyncFailedItem describes one chat that could not be stored or relayed
type SyncFailedItem struct {
	ExternalID string `json:"external_id"`
	Stage      string `json:"stage"` // "chat" or "messages"
	Error      string `json:"error"`
}

// SyncResult summarises a chat pull.
// Synced counts upserted chats; message relay failures never reduce it.
type SyncResult struct {
	Status      SyncStatus       `json:"status"`
	Total       int              `json:"total"`
	Synced      int              `json:"synced"`
	Failed      int              `json:"failed"`
	FailedItems []SyncFailedItem `json:"failed_items,omitempty"`
}

// Finalize derives Status from the counters
func (r *SyncResult) Finalize() {
	switch {
	case r.Total > 0 && r.Synced == 0:
		r.Status = SyncStatusFailed
	case r.Failed > 0 || len(r.FailedItems) > 0:
		r.Status = SyncStatusPartial
	default:
		r.Status = SyncStatusSuccess
	}
}

// IngestOutcome describes what a webhook delivery did to the store
type IngestOutcome string

const (
	// IngestOutcomeStored means a new message row was inserted
	IngestOutcomeStored IngestOutcome = "stored"
	// IngestOutcomeDuplicate means the message was already present
	IngestOutcomeDuplicate IngestOutcome = "duplicate"
	// IngestOutcomeIgnored means the event kind is not stored
	IngestOutcomeIgnored IngestOutcome = "ignored"
)

// IngestResult is returned for every acknowledged webhook delivery
type IngestResult struct {
	Outcome     IngestOutcome
	ChatID      uuid.UUID
	ChatCreated bool
	Message     *Message
}

// SendResult carries the stored outbound message and the raw platform answer
type SendResult struct {
	Message  *Message
	Response json.RawMessage
}
