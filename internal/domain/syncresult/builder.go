package syncresult

import (
	"fmt"
	"time"
)

// Policy decides whether a batch with some failed units counts as a success.
type Policy int

const (
	// AtLeastOne marks the batch successful when at least one unit succeeded.
	AtLeastOne Policy = iota
	// AllOrNothing marks the batch successful only when no unit failed.
	AllOrNothing
)

func (p Policy) String() string {
	switch p {
	case AtLeastOne:
		return "at_least_one"
	case AllOrNothing:
		return "all_or_nothing"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts the config spelling of a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "at_least_one":
		return AtLeastOne, nil
	case "all_or_nothing":
		return AllOrNothing, nil
	default:
		return 0, fmt.Errorf("invalid batch policy: %q", s)
	}
}

// Builder accumulates per-unit outcomes of a batch operation and produces a
// Result that honours the Result invariants.
type Builder struct {
	channelID  string
	propertyID string
	syncType   Type
	policy     Policy

	succeeded int // units
	synced    int // records landed on the channel
	failed    int
	errors    []string
	warnings  []string
}

func NewBuilder(channelID, propertyID string, t Type, policy Policy) *Builder {
	return &Builder{
		channelID:  channelID,
		propertyID: propertyID,
		syncType:   t,
		policy:     policy,
		errors:     []string{},
		warnings:   []string{},
	}
}

// Succeed records one successful unit carrying one record.
func (b *Builder) Succeed() { b.SucceedN(1) }

// SucceedN records one successful unit that carried n records.
func (b *Builder) SucceedN(n int) {
	b.succeeded++
	b.synced += n
}

// Fail records one failed unit; exactly one error entry per call.
func (b *Builder) Fail(format string, args ...any) {
	b.failed++
	b.errors = append(b.errors, fmt.Sprintf(format, args...))
}

// Warn records a note that does not count as a unit outcome.
func (b *Builder) Warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

func (b *Builder) Succeeded() int { return b.succeeded }
func (b *Builder) Failed() int    { return b.failed }

// Build freezes the batch into a Result.
func (b *Builder) Build(now time.Time) *Result {
	attempted := b.succeeded + b.failed

	var success bool
	switch b.policy {
	case AllOrNothing:
		success = b.failed == 0
	default:
		success = b.succeeded > 0 || attempted == 0
	}

	r := &Result{
		Success:    success,
		Errors:     append([]string{}, b.errors...),
		Warnings:   append([]string{}, b.warnings...),
		Timestamp:  now,
		ChannelID:  b.channelID,
		PropertyID: b.propertyID,
		SyncType:   b.syncType,
	}
	if attempted == 0 {
		r.Warnings = append(r.Warnings, "no units to sync")
	}

	switch {
	case success && b.failed == 0:
		r.Message = fmt.Sprintf("synced %d %s", b.succeeded, b.unitNoun())
	case success:
		r.Message = fmt.Sprintf("synced %d of %d %s", b.succeeded, attempted, b.unitNoun())
	default:
		r.Message = fmt.Sprintf("%s sync failed: %d of %d %s failed", b.syncType, b.failed, attempted, b.unitNoun())
		if len(r.Errors) == 0 {
			r.Errors = append(r.Errors, r.Message)
		}
	}

	// Only the count matching the sync type is populated; a failed batch
	// still reports what did land on the channel.
	switch b.syncType {
	case Inventory:
		r.SyncedRooms = b.synced
	case Rates:
		r.SyncedRates = b.synced
	case Availability:
		r.SyncedInventory = b.synced
	}
	return r
}

func (b *Builder) unitNoun() string {
	switch b.syncType {
	case Inventory:
		return "rooms"
	case Rates:
		return "room rates"
	case Availability:
		return "availability batches"
	default:
		return "units"
	}
}
