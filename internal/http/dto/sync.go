package dto

import (
	"errors"
	"fmt"
	"time"

	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/pkg/jsonx"
)

// SyncRequest is the optional body of POST /api/properties/{pid}/sync/{type}.
//
// An empty channel_ids list targets every active channel of the property.
// start/end (YYYY-MM-DD) apply to availability syncs only and must be given
// together; when both are absent the default horizon is used.
type SyncRequest struct {
	ChannelIDs []string            `json:"channel_ids"`
	Start      jsonx.Field[string] `json:"start"`
	End        jsonx.Field[string] `json:"end"`
}

// DateRange returns nil when no range was requested.
func (r *SyncRequest) DateRange() (*property.DateRange, error) {
	start, end := r.Start.ValueOr(""), r.End.ValueOr("")
	if start == "" && end == "" {
		return nil, nil
	}
	rng, err := ParseDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

// ParseDateRange parses an inclusive YYYY-MM-DD range; both ends are required.
func ParseDateRange(start, end string) (property.DateRange, error) {
	if start == "" || end == "" {
		return property.DateRange{}, errors.New("start and end must be given together")
	}
	s, err := time.Parse(property.DateLayout, start)
	if err != nil {
		return property.DateRange{}, fmt.Errorf("start: %w", err)
	}
	e, err := time.Parse(property.DateLayout, end)
	if err != nil {
		return property.DateRange{}, fmt.Errorf("end: %w", err)
	}
	return property.DateRange{Start: s, End: e}, nil
}
