package channel

import (
	"time"

	"github.com/edirooss/chansync/internal/domain/syncresult"
)

// StatusView is the read-only status projection shown to operators.
type StatusView struct {
	ChannelID    string             `json:"channel_id"`
	PropertyID   string             `json:"property_id"`
	Type         string             `json:"type"`
	Name         string             `json:"name"`
	Status       Status             `json:"status"`
	SyncStatus   SyncStatus         `json:"sync_status"`
	LastSync     *time.Time         `json:"last_sync"`
	ErrorMessage string             `json:"error_message,omitempty"`
	LastResult   *syncresult.Result `json:"last_result,omitempty"`
}

func (ch *Channel) AsStatusView() StatusView {
	return StatusView{
		ChannelID:    ch.ID,
		PropertyID:   ch.PropertyID,
		Type:         ch.Type,
		Name:         ch.Name,
		Status:       ch.Status,
		SyncStatus:   ch.SyncStatus,
		LastSync:     ch.LastSync,
		ErrorMessage: ch.ErrorMessage,
		LastResult:   ch.LastResult,
	}
}

// AsRedactedView returns a copy safe to serve over the API: credential
// values are replaced by a fixed mask, keys are kept.
func (ch *Channel) AsRedactedView() *Channel {
	out := ch.Clone()
	for k := range out.Credentials {
		out.Credentials[k] = "********"
	}
	return out
}
