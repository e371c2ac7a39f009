package dto

import (
	"github.com/edirooss/chansync/internal/domain/channel"
)

// ChannelCreate is the body of POST /api/properties/{pid}/channels.
// Sync status fields are server-owned and cannot be set.
type ChannelCreate struct {
	Type          string                `json:"type"`
	Name          string                `json:"name"`
	Status        channel.Status        `json:"status"`
	Credentials   channel.Credentials   `json:"credentials"`
	Configuration channel.Configuration `json:"configuration"`
	Mappings      channel.Mappings      `json:"mappings"`
}

func (r *ChannelCreate) ToChannel(propertyID string) *channel.Channel {
	return &channel.Channel{
		PropertyID:    propertyID,
		Type:          r.Type,
		Name:          r.Name,
		Status:        r.Status,
		Credentials:   r.Credentials,
		Configuration: r.Configuration,
		Mappings:      r.Mappings,
	}
}

// CredentialsUpdate replaces every stored credential of a channel.
type CredentialsUpdate struct {
	Credentials channel.Credentials `json:"credentials"`
}

// StatusUpdate sets the administrative status; configuration keys are
// merged, and a null value removes a key.
type StatusUpdate struct {
	Status        channel.Status        `json:"status"`
	Configuration channel.Configuration `json:"configuration"`
}

// TestConnection is the optional body of POST /api/channels/{id}/test.
// Without credentials the stored ones are tested.
type TestConnection struct {
	Credentials channel.Credentials `json:"credentials"`
}
