package timetable

import (
	"sort"

	"learningcenter_go/models"
)

// DefaultPeriodsPerDay is reported as maxPeriods when a school has no
// active timetable.
const DefaultPeriodsPerDay = 8

// Consolidated is the school-wide view over all active class timetables.
type Consolidated struct {
	Entries    []models.AnnotatedEntry `json:"entries"`
	MaxPeriods int                     `json:"maxPeriods"`
}

// ConsolidatedSlot groups the entries sharing one (day, period).
type ConsolidatedSlot struct {
	DayOfWeek    models.DayOfWeek        `json:"day_of_week"`
	PeriodNumber int                     `json:"period_number"`
	Entries      []models.AnnotatedEntry `json:"entries"`
	Conflict     bool                    `json:"conflict"`
}

type slotKey struct {
	day    models.DayOfWeek
	period int
}

// SortEntries orders entries by day, period, class grade and section.
// Ties keep their incoming order.
func SortEntries(entries []models.AnnotatedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if di, dj := a.DayOfWeek.Index(), b.DayOfWeek.Index(); di != dj {
			return di < dj
		}
		if a.PeriodNumber != b.PeriodNumber {
			return a.PeriodNumber < b.PeriodNumber
		}
		if a.Grade != b.Grade {
			return a.Grade < b.Grade
		}
		return a.Section < b.Section
	})
}

// GroupBySlot buckets already ordered entries by (day, period). Slots come
// out in first-seen order; a slot with two or more entries is flagged.
func GroupBySlot(entries []models.AnnotatedEntry) []ConsolidatedSlot {
	slots := make([]ConsolidatedSlot, 0)
	index := make(map[slotKey]int)
	for _, e := range entries {
		k := slotKey{day: e.DayOfWeek, period: e.PeriodNumber}
		i, ok := index[k]
		if !ok {
			i = len(slots)
			index[k] = i
			slots = append(slots, ConsolidatedSlot{DayOfWeek: e.DayOfWeek, PeriodNumber: e.PeriodNumber})
		}
		slots[i].Entries = append(slots[i].Entries, e)
	}
	for i := range slots {
		slots[i].Conflict = len(slots[i].Entries) >= 2
	}
	return slots
}

// TeacherClashes returns the slots where one teacher is booked more than
// once. Each returned slot only holds the double-booked entries.
func TeacherClashes(entries []models.AnnotatedEntry) []ConsolidatedSlot {
	clashes := make([]ConsolidatedSlot, 0)
	for _, slot := range GroupBySlot(entries) {
		if !slot.Conflict {
			continue
		}
		perTeacher := make(map[uint]int)
		for _, e := range slot.Entries {
			if e.TeacherID != nil {
				perTeacher[*e.TeacherID]++
			}
		}
		var clashing []models.AnnotatedEntry
		for _, e := range slot.Entries {
			if e.TeacherID != nil && perTeacher[*e.TeacherID] > 1 {
				clashing = append(clashing, e)
			}
		}
		if len(clashing) > 0 {
			clashes = append(clashes, ConsolidatedSlot{
				DayOfWeek:    slot.DayOfWeek,
				PeriodNumber: slot.PeriodNumber,
				Entries:      clashing,
				Conflict:     true,
			})
		}
	}
	return clashes
}
