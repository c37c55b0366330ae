package timetable

import (
	"context"
	"time"

	"learningcenter_go/models"
)

// Store is the persistence the timetable service needs. Lookups return
// (nil, nil) when the record does not exist.
type Store interface {
	GetClass(ctx context.Context, classID uint) (*models.Class, error)
	GetTimetable(ctx context.Context, id uint) (*models.Timetable, error)
	ActiveTimetableForClass(ctx context.Context, classID uint) (*models.Timetable, error)
	ActiveEntries(ctx context.Context, timetableID uint) ([]models.TimetableEntry, error)

	// CreateTimetable inserts the timetable and its entries atomically and
	// returns the stored entries.
	CreateTimetable(ctx context.Context, tt *models.Timetable, entries []models.TimetableEntry) ([]models.TimetableEntry, error)
	// ReplaceEntries removes every entry of the timetable and inserts the
	// given ones atomically.
	ReplaceEntries(ctx context.Context, timetableID uint, entries []models.TimetableEntry) ([]models.TimetableEntry, error)
	DeactivateTimetable(ctx context.Context, id uint) error

	// SchoolEntries returns active entries of active timetables whose class
	// belongs to the school.
	SchoolEntries(ctx context.Context, schoolID uint) ([]models.AnnotatedEntry, error)
	// SchoolMaxPeriods returns the largest periods_per_day among the school's
	// active timetables, 0 when there are none.
	SchoolMaxPeriods(ctx context.Context, schoolID uint) (int, error)
	TeacherEntries(ctx context.Context, teacherID uint) ([]models.AnnotatedEntry, error)
}

// Cache holds serialized consolidated views.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr atomically adds one to the integer at key, starting from zero.
	Incr(ctx context.Context, key string) (int64, error)
}

// Notifier pushes change events to connected clients of a school.
type Notifier interface {
	BroadcastToSchool(schoolID uint, message interface{})
}
