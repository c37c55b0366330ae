package timetable

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"learningcenter_go/models"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	cacheKeyPrefix = "timetable:consolidated:"
	generationKey  = "timetable:generation:"
	EventUpdated   = "timetable.updated"
)

// EntryInput is one entry of a create or replace request.
type EntryInput struct {
	DayOfWeek    models.DayOfWeek `json:"day_of_week" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	PeriodNumber int              `json:"period_number" validate:"gt=0"`
	StartTime    string           `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime      string           `json:"end_time" validate:"omitempty,datetime=15:04"`
	Subject      *string          `json:"subject" validate:"omitempty,max=255"`
	Room         *string          `json:"room" validate:"omitempty,max=100"`
	TeacherID    *uint            `json:"teacher_id"`
}

type CreateTimetableInput struct {
	ClassID       uint         `json:"class_id" validate:"required"`
	Name          string       `json:"name" validate:"max=255"`
	PeriodsPerDay int          `json:"periods_per_day" validate:"omitempty,gt=0,lte=24"`
	Entries       []EntryInput `json:"entries" validate:"dive"`
}

type ReplaceEntriesInput struct {
	Entries []EntryInput `json:"entries" validate:"dive"`
}

// View is a timetable together with its active entries.
type View struct {
	Timetable *models.Timetable       `json:"timetable"`
	Entries   []models.TimetableEntry `json:"entries"`
}

// TeacherSchedule is everything one trainer teaches plus any double bookings.
type TeacherSchedule struct {
	Entries []models.AnnotatedEntry `json:"entries"`
	Clashes []ConsolidatedSlot      `json:"clashes"`
}

// Event is broadcast to a school's clients after a timetable write.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Service struct {
	store    Store
	cache    Cache
	cacheTTL time.Duration
	notifier Notifier
	validate *validator.Validate
}

// NewService builds the timetable service. cache and notifier may be nil.
func NewService(store Store, cache Cache, cacheTTL time.Duration, notifier Notifier) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		notifier: notifier,
		validate: validator.New(),
	}
}

// Cached views are keyed by the school's write generation, so a view loaded
// before a write can only ever be stored under a generation nobody reads.
func cacheKey(schoolID uint, generation string) string {
	return fmt.Sprintf("%s%d:%s", cacheKeyPrefix, schoolID, generation)
}

func generationCounter(schoolID uint) string {
	return fmt.Sprintf("%s%d", generationKey, schoolID)
}

// currentCacheKey reads the generation before anything is loaded. It
// reports false when the generation is unknown and the cache must be skipped.
func (s *Service) currentCacheKey(ctx context.Context, schoolID uint) (string, bool) {
	raw, ok, err := s.cache.Get(ctx, generationCounter(schoolID))
	if err != nil {
		logrus.WithError(err).WithField("school_id", schoolID).Warn("timetable cache generation read failed")
		return "", false
	}
	generation := "0"
	if ok {
		generation = string(raw)
	}
	return cacheKey(schoolID, generation), true
}

// Consolidate returns every active entry of the school's active timetables
// in display order, with the widest periods_per_day among them.
func (s *Service) Consolidate(ctx context.Context, schoolID uint) (Consolidated, error) {
	var (
		key    string
		cached bool
	)
	if s.cache != nil {
		key, cached = s.currentCacheKey(ctx, schoolID)
	}
	if cached {
		if view, ok := s.cachedConsolidation(ctx, key); ok {
			return view, nil
		}
	}

	entries, err := s.store.SchoolEntries(ctx, schoolID)
	if err != nil {
		return Consolidated{}, fmt.Errorf("load school entries: %w", err)
	}
	maxPeriods, err := s.store.SchoolMaxPeriods(ctx, schoolID)
	if err != nil {
		return Consolidated{}, fmt.Errorf("load periods per day: %w", err)
	}
	if maxPeriods <= 0 {
		maxPeriods = DefaultPeriodsPerDay
	}
	if entries == nil {
		entries = make([]models.AnnotatedEntry, 0)
	}
	SortEntries(entries)

	result := Consolidated{Entries: entries, MaxPeriods: maxPeriods}
	if cached {
		s.storeConsolidation(ctx, key, result)
	}
	return result, nil
}

func (s *Service) cachedConsolidation(ctx context.Context, key string) (Consolidated, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("timetable cache read failed")
		return Consolidated{}, false
	}
	if !ok {
		return Consolidated{}, false
	}
	var out Consolidated
	if err := json.Unmarshal(raw, &out); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("discarding unreadable timetable cache entry")
		return Consolidated{}, false
	}
	return out, true
}

func (s *Service) storeConsolidation(ctx context.Context, key string, c Consolidated) {
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("timetable cache write failed")
	}
}

// ConsolidateForTeacher lists a trainer's entries across schools.
func (s *Service) ConsolidateForTeacher(ctx context.Context, teacherID uint) (TeacherSchedule, error) {
	entries, err := s.store.TeacherEntries(ctx, teacherID)
	if err != nil {
		return TeacherSchedule{}, fmt.Errorf("load teacher entries: %w", err)
	}
	if entries == nil {
		entries = make([]models.AnnotatedEntry, 0)
	}
	SortEntries(entries)
	return TeacherSchedule{Entries: entries, Clashes: TeacherClashes(entries)}, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*View, error) {
	tt, err := s.store.GetTimetable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load timetable: %w", err)
	}
	if tt == nil || !tt.IsActive {
		return nil, ErrTimetableNotFound
	}
	return s.view(ctx, tt)
}

// SchoolOfClass returns the school an active class belongs to.
func (s *Service) SchoolOfClass(ctx context.Context, classID uint) (uint, error) {
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return 0, fmt.Errorf("load class: %w", err)
	}
	if class == nil {
		return 0, ErrClassNotFound
	}
	return class.SchoolID, nil
}

// SchoolOfTimetable returns the school an active timetable belongs to.
func (s *Service) SchoolOfTimetable(ctx context.Context, id uint) (uint, error) {
	tt, err := s.store.GetTimetable(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load timetable: %w", err)
	}
	if tt == nil || !tt.IsActive {
		return 0, ErrTimetableNotFound
	}
	return tt.SchoolID, nil
}

func (s *Service) GetForClass(ctx context.Context, classID uint) (*View, error) {
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	tt, err := s.store.ActiveTimetableForClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load class timetable: %w", err)
	}
	if tt == nil {
		return nil, ErrTimetableNotFound
	}
	return s.view(ctx, tt)
}

func (s *Service) view(ctx context.Context, tt *models.Timetable) (*View, error) {
	entries, err := s.store.ActiveEntries(ctx, tt.ID)
	if err != nil {
		return nil, fmt.Errorf("load timetable entries: %w", err)
	}
	if entries == nil {
		entries = make([]models.TimetableEntry, 0)
	}
	return &View{Timetable: tt, Entries: entries}, nil
}

// Create adds a timetable for a class that has none active.
func (s *Service) Create(ctx context.Context, in CreateTimetableInput) (*View, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}
	if err := checkTimeRanges(in.Entries); err != nil {
		return nil, err
	}

	class, err := s.store.GetClass(ctx, in.ClassID)
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	existing, err := s.store.ActiveTimetableForClass(ctx, in.ClassID)
	if err != nil {
		return nil, fmt.Errorf("check active timetable: %w", err)
	}
	if existing != nil {
		return nil, ErrActiveTimetableExists
	}

	tt := &models.Timetable{
		ClassID:       class.ID,
		SchoolID:      class.SchoolID,
		Name:          in.Name,
		PeriodsPerDay: in.PeriodsPerDay,
		IsActive:      true,
	}
	if tt.Name == "" {
		tt.Name = class.Name
	}
	if tt.PeriodsPerDay == 0 {
		tt.PeriodsPerDay = DefaultPeriodsPerDay
	}

	entries, err := s.store.CreateTimetable(ctx, tt, toEntries(in.Entries))
	if err != nil {
		return nil, fmt.Errorf("create timetable: %w", err)
	}
	s.afterWrite(ctx, tt)
	return &View{Timetable: tt, Entries: entries}, nil
}

// ReplaceEntries swaps the whole entry set of an active timetable.
func (s *Service) ReplaceEntries(ctx context.Context, id uint, in ReplaceEntriesInput) (*View, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}
	if err := checkTimeRanges(in.Entries); err != nil {
		return nil, err
	}

	tt, err := s.store.GetTimetable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load timetable: %w", err)
	}
	if tt == nil || !tt.IsActive {
		return nil, ErrTimetableNotFound
	}

	entries, err := s.store.ReplaceEntries(ctx, id, toEntries(in.Entries))
	if err != nil {
		return nil, fmt.Errorf("replace timetable entries: %w", err)
	}
	s.afterWrite(ctx, tt)
	return &View{Timetable: tt, Entries: entries}, nil
}

func (s *Service) Deactivate(ctx context.Context, id uint) error {
	tt, err := s.store.GetTimetable(ctx, id)
	if err != nil {
		return fmt.Errorf("load timetable: %w", err)
	}
	if tt == nil || !tt.IsActive {
		return ErrTimetableNotFound
	}
	if err := s.store.DeactivateTimetable(ctx, id); err != nil {
		return fmt.Errorf("deactivate timetable: %w", err)
	}
	tt.IsActive = false
	s.afterWrite(ctx, tt)
	return nil
}

// afterWrite moves the school to a new cache generation and tells its clients.
func (s *Service) afterWrite(ctx context.Context, tt *models.Timetable) {
	if s.cache != nil {
		s.invalidate(ctx, tt.SchoolID)
	}
	if s.notifier != nil {
		s.notifier.BroadcastToSchool(tt.SchoolID, Event{
			Type: EventUpdated,
			Data: map[string]interface{}{
				"school_id":    tt.SchoolID,
				"class_id":     tt.ClassID,
				"timetable_id": tt.ID,
				"is_active":    tt.IsActive,
			},
		})
	}
}

func (s *Service) invalidate(ctx context.Context, schoolID uint) {
	generation, err := s.cache.Incr(ctx, generationCounter(schoolID))
	if err != nil {
		logrus.WithError(err).WithField("school_id", schoolID).Warn("timetable cache generation bump failed")
		if key, ok := s.currentCacheKey(ctx, schoolID); ok {
			if err := s.cache.Delete(ctx, key); err != nil {
				logrus.WithError(err).WithField("school_id", schoolID).Warn("timetable cache invalidation failed")
			}
		}
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(schoolID, strconv.FormatInt(generation-1, 10))); err != nil {
		logrus.WithError(err).WithField("school_id", schoolID).Warn("timetable cache invalidation failed")
	}
}

func toEntries(in []EntryInput) []models.TimetableEntry {
	out := make([]models.TimetableEntry, 0, len(in))
	for _, e := range in {
		out = append(out, models.TimetableEntry{
			DayOfWeek:    e.DayOfWeek,
			PeriodNumber: e.PeriodNumber,
			StartTime:    e.StartTime,
			EndTime:      e.EndTime,
			Subject:      e.Subject,
			Room:         e.Room,
			TeacherID:    e.TeacherID,
			IsActive:     true,
		})
	}
	return out
}

func checkTimeRanges(entries []EntryInput) error {
	var fields []FieldError
	for i, e := range entries {
		if e.StartTime == "" || e.EndTime == "" {
			continue
		}
		start, err1 := time.Parse("15:04", e.StartTime)
		end, err2 := time.Parse("15:04", e.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if !end.After(start) {
			fields = append(fields, FieldError{
				Field: fmt.Sprintf("entries[%d].end_time", i),
				Error: "must be after start_time",
			})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
