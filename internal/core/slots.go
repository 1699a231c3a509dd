package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Layouts a session reference may use for a slot start time. The first two
// are also the keys registered in a SlotMapping.
var slotTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006 15h04",
}

// SlotMapping resolves free-text or id-based session references to slot ids.
// Each slot is registered under its start time (with and without seconds),
// its description and its external session id.
type SlotMapping map[string]uuid.UUID

// BuildSlotMapping indexes slots by every representation a source may use.
// Start times are formatted in loc, the time zone operators read.
func BuildSlotMapping(slots []Slot, loc *time.Location) SlotMapping {
	if loc == nil {
		loc = time.UTC
	}
	m := make(SlotMapping, len(slots)*4)
	for _, s := range slots {
		start := s.StartsAt.In(loc)
		m[start.Format(slotTimeLayouts[0])] = s.ID
		m[start.Format(slotTimeLayouts[1])] = s.ID
		if s.Description != "" {
			m[strings.TrimSpace(s.Description)] = s.ID
			m[descriptionKey(s.Description)] = s.ID
		}
		if s.ExternalSessionID != "" {
			m[strings.TrimSpace(s.ExternalSessionID)] = s.ID
		}
	}
	return m
}

// Resolve returns the slot for ref. It tries an exact match, then a folded
// description match, then reparses ref as a date-time in any known layout.
func (m SlotMapping) Resolve(ref string, loc *time.Location) (uuid.UUID, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return uuid.Nil, false
	}
	if id, ok := m[ref]; ok {
		return id, true
	}
	if id, ok := m[descriptionKey(ref)]; ok {
		return id, true
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range slotTimeLayouts {
		t, err := time.ParseInLocation(layout, ref, loc)
		if err != nil {
			continue
		}
		if id, ok := m[t.Format(slotTimeLayouts[0])]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

func descriptionKey(s string) string {
	return "desc:" + Fold(s)
}
