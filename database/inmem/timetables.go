package inmem

import (
	"context"
	"sort"

	"learningcenter_go/models"
)

func (s *Store) GetTimetable(_ context.Context, id uint) (*models.Timetable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tt, ok := s.timetables[id]
	if !ok {
		return nil, nil
	}
	return &tt, nil
}

func (s *Store) ActiveTimetableForClass(_ context.Context, classID uint) (*models.Timetable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Timetable
	for _, tt := range s.timetables {
		if tt.ClassID != classID || !tt.IsActive {
			continue
		}
		if found == nil || tt.ID > found.ID {
			tt := tt
			found = &tt
		}
	}
	return found, nil
}

func (s *Store) ActiveEntries(_ context.Context, timetableID uint) ([]models.TimetableEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TimetableEntry, 0)
	for _, e := range s.entries {
		if e.TimetableID == timetableID && e.IsActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DayOfWeek.Index() != b.DayOfWeek.Index() {
			return a.DayOfWeek.Index() < b.DayOfWeek.Index()
		}
		if a.PeriodNumber != b.PeriodNumber {
			return a.PeriodNumber < b.PeriodNumber
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) CreateTimetable(_ context.Context, tt *models.Timetable, entries []models.TimetableEntry) ([]models.TimetableEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&tt.BaseModel)
	s.timetables[tt.ID] = *tt
	s.insertEntries(tt.ID, entries)
	return entries, nil
}

func (s *Store) ReplaceEntries(_ context.Context, timetableID uint, entries []models.TimetableEntry) ([]models.TimetableEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.TimetableID == timetableID {
			delete(s.entries, id)
		}
	}
	s.insertEntries(timetableID, entries)
	return entries, nil
}

func (s *Store) insertEntries(timetableID uint, entries []models.TimetableEntry) {
	for i := range entries {
		s.stamp(&entries[i].BaseModel)
		entries[i].TimetableID = timetableID
		entries[i].IsActive = true
		s.entries[entries[i].ID] = entries[i]
	}
}

func (s *Store) DeactivateTimetable(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tt, ok := s.timetables[id]; ok {
		tt.IsActive = false
		s.timetables[id] = tt
	}
	return nil
}

func (s *Store) SchoolEntries(_ context.Context, schoolID uint) ([]models.AnnotatedEntry, error) {
	return s.annotated(func(_ models.TimetableEntry, c models.Class) bool {
		return c.SchoolID == schoolID
	}), nil
}

func (s *Store) TeacherEntries(_ context.Context, teacherID uint) ([]models.AnnotatedEntry, error) {
	return s.annotated(func(e models.TimetableEntry, _ models.Class) bool {
		return e.TeacherID != nil && *e.TeacherID == teacherID
	}), nil
}

// annotated joins active entries of active timetables with their class.
// Results are returned in id order; callers sort for display.
func (s *Store) annotated(keep func(models.TimetableEntry, models.Class) bool) []models.AnnotatedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AnnotatedEntry, 0)
	ids := make([]uint, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		e := s.entries[id]
		tt, ok := s.timetables[e.TimetableID]
		if !ok || !tt.IsActive || !e.IsActive {
			continue
		}
		c, ok := s.classes[tt.ClassID]
		if !ok || !keep(e, c) {
			continue
		}
		out = append(out, models.AnnotatedEntry{
			ID:            e.ID,
			TimetableID:   tt.ID,
			ClassID:       c.ID,
			ClassName:     c.Name,
			Grade:         c.Grade,
			Section:       c.Section,
			PeriodsPerDay: tt.PeriodsPerDay,
			DayOfWeek:     e.DayOfWeek,
			PeriodNumber:  e.PeriodNumber,
			StartTime:     e.StartTime,
			EndTime:       e.EndTime,
			Subject:       e.Subject,
			Room:          e.Room,
			TeacherID:     e.TeacherID,
		})
	}
	return out
}

func (s *Store) SchoolMaxPeriods(_ context.Context, schoolID uint) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, tt := range s.timetables {
		if !tt.IsActive {
			continue
		}
		if c, ok := s.classes[tt.ClassID]; ok && c.SchoolID == schoolID && tt.PeriodsPerDay > max {
			max = tt.PeriodsPerDay
		}
	}
	return max, nil
}
