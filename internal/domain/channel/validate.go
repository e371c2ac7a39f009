package channel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Dependency rules
// key requires all fields in the slice
var depRules = map[string][]string{
	"status.active":  {"type", "property_id"},
	"status.testing": {"type"},
	"credentials":    {"type"},
}

func (ch *Channel) Validate() error {
	// name: minLength 1, maxLength 100
	if len(ch.Name) < 1 {
		return errors.New("name must be at least 1 character")
	}
	if len(ch.Name) > 100 {
		return errors.New("name must be at most 100 characters")
	}

	// type: maxLength 64, lower snake case
	if len(ch.Type) > 64 {
		return errors.New("type must be at most 64 characters")
	}
	for _, r := range ch.Type {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return fmt.Errorf("invalid type %q: only [a-z0-9_] allowed", ch.Type)
		}
	}

	if !ch.Status.Valid() {
		return fmt.Errorf("invalid status %q", ch.Status)
	}

	if err := ch.Mappings.Validate(); err != nil {
		return fmt.Errorf("invalid mappings: %w", err)
	}

	// Cross-field dependency check
	if err := ch.crossDependencyCheck(); err != nil {
		return err
	}

	return nil
}

// Validate rejects empty ids and duplicate internal ids.
func (m Mappings) Validate() error {
	seen := make(map[string]struct{}, len(m.Rooms))
	for i, rm := range m.Rooms {
		if rm.InternalID == "" || rm.ChannelID == "" {
			return fmt.Errorf("rooms[%d]: internal_id and channel_id are required", i)
		}
		if _, dup := seen[rm.InternalID]; dup {
			return fmt.Errorf("rooms[%d]: duplicate internal_id %q", i, rm.InternalID)
		}
		seen[rm.InternalID] = struct{}{}
	}

	seen = make(map[string]struct{}, len(m.Rates))
	for i, rm := range m.Rates {
		if rm.InternalID == "" || rm.ChannelID == "" {
			return fmt.Errorf("rates[%d]: internal_id and channel_id are required", i)
		}
		if _, dup := seen[rm.InternalID]; dup {
			return fmt.Errorf("rates[%d]: duplicate internal_id %q", i, rm.InternalID)
		}
		seen[rm.InternalID] = struct{}{}
	}
	return nil
}

// crossDependencyCheck ensures all required (transitive) dependencies are set for any set field in depRules.
func (ch *Channel) crossDependencyCheck() error {
	missing := map[string]struct{}{}

	// DFS over dependencies; collect missing recursively.
	var visit func(string)
	visit = func(f string) {
		for _, dep := range depRules[f] {
			if !ch.isSet(dep) {
				missing[dep] = struct{}{}
			}
			visit(dep)
		}
	}

	for field := range depRules {
		if ch.isSet(field) {
			visit(field)
		}
	}

	if len(missing) == 0 {
		return nil
	}
	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Errorf("missing (cross-dependency) required fields [%s]", strings.Join(keys, ", "))
}

// isSet returns whether a field named in depRules is considered "set".
//
// NOTE: This function is tightly coupled to the `depRules` and must be kept in sync with any additions to that map.
func (ch *Channel) isSet(field string) bool {
	switch field {
	case "type":
		return ch.Type != ""
	case "property_id":
		return ch.PropertyID != ""
	case "credentials":
		return len(ch.Credentials) > 0
	case "status.active":
		return ch.Status == StatusActive
	case "status.testing":
		return ch.Status == StatusTesting
	default:
		return false
	}
}
