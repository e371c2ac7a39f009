package channel

import (
	"time"

	"github.com/edirooss/chansync/internal/domain/syncresult"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusError    Status = "error"
	StatusTesting  Status = "testing"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusError, StatusTesting:
		return true
	}
	return false
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// Credentials and Configuration are opaque to the core; each connector
// validates and interprets its own keys.
type (
	Credentials   map[string]string
	Configuration map[string]any
)

// Channel is a configured external distribution endpoint for one property.
type Channel struct {
	ID            string             `json:"id"`
	PropertyID    string             `json:"property_id"`
	Type          string             `json:"type"` // selects the connector
	Name          string             `json:"name"`
	Status        Status             `json:"status"`
	Credentials   Credentials        `json:"credentials"`
	Configuration Configuration      `json:"configuration"`
	Mappings      Mappings           `json:"mappings"`
	LastSync      *time.Time         `json:"last_sync"`     // nullable
	SyncStatus    SyncStatus         `json:"sync_status"`   //
	ErrorMessage  string             `json:"error_message"` // cleared on success
	LastResult    *syncresult.Result `json:"last_result"`   // nullable
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// SyncState is the status slice of a Channel the orchestrator writes after
// every sync attempt.
type SyncState struct {
	SyncStatus   SyncStatus
	LastSync     *time.Time
	ErrorMessage string
	LastResult   *syncresult.Result
}

// Apply copies the state onto ch. A nil LastSync/LastResult leaves the
// previous value untouched.
func (s SyncState) Apply(ch *Channel) {
	ch.SyncStatus = s.SyncStatus
	ch.ErrorMessage = s.ErrorMessage
	if s.LastSync != nil {
		t := *s.LastSync
		ch.LastSync = &t
	}
	if s.LastResult != nil {
		ch.LastResult = s.LastResult
	}
}

// Clone returns a deep copy; maps and slices are reallocated.
func (ch *Channel) Clone() *Channel {
	out := *ch
	if ch.Credentials != nil {
		out.Credentials = make(Credentials, len(ch.Credentials))
		for k, v := range ch.Credentials {
			out.Credentials[k] = v
		}
	}
	if ch.Configuration != nil {
		out.Configuration = make(Configuration, len(ch.Configuration))
		for k, v := range ch.Configuration {
			out.Configuration[k] = v
		}
	}
	out.Mappings = ch.Mappings.Clone()
	if ch.LastSync != nil {
		t := *ch.LastSync
		out.LastSync = &t
	}
	return &out
}
