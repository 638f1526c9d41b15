// Package policy decides when reminder requests are emitted for a booking.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Provider interface {
	// ReminderOffsets returns how long before the appointment start each
	// reminder should fire, largest first.
	ReminderOffsets(ctx context.Context, practitionerID string) ([]time.Duration, error)
}

type staticProvider struct {
	offsets []time.Duration
}

func NewStaticProvider(offsets []time.Duration) Provider {
	cp := append([]time.Duration(nil), offsets...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] > cp[j] })
	return &staticProvider{offsets: cp}
}

func (p *staticProvider) ReminderOffsets(_ context.Context, _ string) ([]time.Duration, error) {
	return p.offsets, nil
}

// ParseOffsets reads a comma separated list of minutes ("1440,60").
// Duplicates are collapsed; an empty string yields no reminders.
func ParseOffsets(raw string) ([]time.Duration, error) {
	seen := map[int]bool{}
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("reminder offset %q: %w", part, err)
		}
		if mins <= 0 {
			return nil, fmt.Errorf("reminder offset %d must be positive", mins)
		}
		if seen[mins] {
			continue
		}
		seen[mins] = true
		out = append(out, time.Duration(mins)*time.Minute)
	}
	return out, nil
}

// Due returns the reminder instants for an appointment starting at start that
// are still after now.
func Due(start, now time.Time, offsets []time.Duration) []time.Time {
	var out []time.Time
	for _, off := range offsets {
		at := start.Add(-off)
		if at.After(now) {
			out = append(out, at)
		}
	}
	return out
}
