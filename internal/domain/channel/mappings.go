package channel

// RoomMapping pairs an internal room id with the channel's id for it.
type RoomMapping struct {
	InternalID string `json:"internal_id"`
	ChannelID  string `json:"channel_id"`
	Active     bool   `json:"active"`
}

// RateMapping pairs an internal rate id with the channel's rate plan id.
type RateMapping struct {
	InternalID     string `json:"internal_id"`
	RoomInternalID string `json:"room_internal_id"`
	ChannelID      string `json:"channel_id"`
	Active         bool   `json:"active"`
}

type Mappings struct {
	Rooms []RoomMapping `json:"rooms"`
	Rates []RateMapping `json:"rates"`
}

// MappingsUpdate replaces the room and/or rate mapping lists; nil leaves a
// list unchanged.
type MappingsUpdate struct {
	Rooms *[]RoomMapping `json:"rooms"`
	Rates *[]RateMapping `json:"rates"`
}

// Room looks up the mapping for an internal room id.
func (m Mappings) Room(internalID string) (RoomMapping, bool) {
	for _, rm := range m.Rooms {
		if rm.InternalID == internalID {
			return rm, true
		}
	}
	return RoomMapping{}, false
}

// RateFor returns the first active rate mapping for a room.
func (m Mappings) RateFor(roomInternalID string) (RateMapping, bool) {
	for _, rm := range m.Rates {
		if rm.RoomInternalID == roomInternalID && rm.Active {
			return rm, true
		}
	}
	return RateMapping{}, false
}

// Apply returns m with the non-nil lists of u swapped in.
func (m Mappings) Apply(u MappingsUpdate) Mappings {
	out := m.Clone()
	if u.Rooms != nil {
		out.Rooms = append([]RoomMapping{}, (*u.Rooms)...)
	}
	if u.Rates != nil {
		out.Rates = append([]RateMapping{}, (*u.Rates)...)
	}
	return out
}

func (m Mappings) Clone() Mappings {
	var out Mappings
	if m.Rooms != nil {
		out.Rooms = append([]RoomMapping{}, m.Rooms...)
	}
	if m.Rates != nil {
		out.Rates = append([]RateMapping{}, m.Rates...)
	}
	return out
}
