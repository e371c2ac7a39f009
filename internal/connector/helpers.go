package connector

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
)

// ErrNotImplemented is reported for a channel whose type has no registered
// connector.
var ErrNotImplemented = errors.New("connector not implemented")

// MissingCredentialsError lists the required credential keys that are absent
// or empty.
type MissingCredentialsError struct {
	Missing []string
}

func (e *MissingCredentialsError) Error() string {
	return "missing required credentials: " + strings.Join(e.Missing, ", ")
}

// ValidateCredentials checks that every required key is present and
// non-blank. Missing keys are reported in required order.
func ValidateCredentials(creds channel.Credentials, required []string) error {
	var missing []string
	for _, k := range required {
		if strings.TrimSpace(creds[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &MissingCredentialsError{Missing: missing}
	}
	return nil
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML entity-escapes a value interpolated into markup.
func EscapeXML(s string) string { return xmlEscaper.Replace(s) }

// RoomBatch is the availability records of one room.
type RoomBatch struct {
	RoomID  string
	Records []property.Availability
}

// GroupByRoom groups records by room id. Rooms keep their first-seen order
// and records keep their input order within a room.
func GroupByRoom(records []property.Availability) []RoomBatch {
	idx := make(map[string]int)
	var out []RoomBatch
	for _, r := range records {
		i, ok := idx[r.RoomID]
		if !ok {
			i = len(out)
			idx[r.RoomID] = i
			out = append(out, RoomBatch{RoomID: r.RoomID})
		}
		out[i].Records = append(out[i].Records, r)
	}
	return out
}

// RateHorizon is the forward window rates are pushed for.
func RateHorizon(now time.Time) property.DateRange {
	return property.DefaultRange(now)
}

// ResolveRoom maps an internal room id to the channel's id. Unmapped rooms
// keep their internal id; ok is false when the mapping exists but is
// inactive.
func ResolveRoom(m channel.Mappings, roomID string) (channelRoomID string, ok bool) {
	rm, found := m.Room(roomID)
	if !found {
		return roomID, true
	}
	if !rm.Active {
		return "", false
	}
	if rm.ChannelID == "" {
		return roomID, true
	}
	return rm.ChannelID, true
}

// RatePlanCode picks the rate plan for a room: an active rate mapping wins,
// then the rate_plan_code setting, then def.
func RatePlanCode(m channel.Mappings, cfg channel.Configuration, roomID, def string) string {
	if rm, ok := m.RateFor(roomID); ok && rm.ChannelID != "" {
		return rm.ChannelID
	}
	return ConfigString(cfg, ConfigRatePlanCode, def)
}

// Recognised configuration keys.
const (
	ConfigBaseURL        = "base_url"
	ConfigCurrency       = "currency"
	ConfigRatePlanCode   = "rate_plan_code"
	ConfigDefaultMinStay = "default_min_stay"
)

// ConfigString reads a string setting.
func ConfigString(cfg channel.Configuration, key, def string) string {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// ConfigInt reads an integer setting; JSON numbers and numeric strings are
// accepted.
func ConfigInt(cfg channel.Configuration, key string, def int) int {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// Currency resolves the currency for outbound rates.
func Currency(cfg channel.Configuration, p property.Property) string {
	def := p.Currency
	if def == "" {
		def = "USD"
	}
	return ConfigString(cfg, ConfigCurrency, def)
}

// RoomRate returns the rate for a record, falling back to the room's base rate.
func RoomRate(a property.Availability, rooms map[string]property.Room) float64 {
	if a.Rate != nil {
		return *a.Rate
	}
	return rooms[a.RoomID].BaseRate
}

// RoomIndex indexes rooms by id.
func RoomIndex(rooms []property.Room) map[string]property.Room {
	out := make(map[string]property.Room, len(rooms))
	for _, r := range rooms {
		out[r.ID] = r
	}
	return out
}

// MinStay returns the record's min stay or the default_min_stay setting.
func MinStay(a property.Availability, cfg channel.Configuration) int {
	if a.MinStay > 0 {
		return a.MinStay
	}
	return ConfigInt(cfg, ConfigDefaultMinStay, 1)
}

// BasicAuth builds an Authorization header value.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// SortedKeys is used for stable log and error output.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
