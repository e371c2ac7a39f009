package booking

import (
	"strings"
	"time"
)

// Booking is a reservation as reported by a channel.
type Booking struct {
	ID               string    `json:"id"`
	ChannelBookingID string    `json:"channel_booking_id"`
	ChannelType      string    `json:"channel_type"`
	GuestName        string    `json:"guest_name"`
	GuestEmail       string    `json:"guest_email"`
	CheckIn          time.Time `json:"check_in"`
	CheckOut         time.Time `json:"check_out"`
	RoomID           string    `json:"room_id"`
	Status           string    `json:"status"`
	TotalAmount      float64   `json:"total_amount"`
	Currency         string    `json:"currency"`
	Notes            string    `json:"notes"`
}

// Update is a status and/or notes change pushed to a channel reservation.
type Update struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// NewID builds the engine-wide booking id "<channel type>-<channel booking id>".
func NewID(channelType, channelBookingID string) string {
	return channelType + "-" + channelBookingID
}

// ChannelBookingID returns the channel's own reservation id for id. Ids
// built by NewID lose their type prefix; anything else is returned as is.
func ChannelBookingID(channelType, id string) string {
	if rest, ok := strings.CutPrefix(id, channelType+"-"); ok && rest != "" {
		return rest
	}
	return id
}
