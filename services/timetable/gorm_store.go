package timetable

import (
	"context"
	"errors"

	"learningcenter_go/models"

	"gorm.io/gorm"
)

const dayOrder = "FIELD(te.day_of_week, 'Monday', 'Tuesday', 'Wednesday', 'Thursday', 'Friday', 'Saturday', 'Sunday')"

const annotatedColumns = `te.id, te.timetable_id, t.class_id, c.name AS class_name, c.grade, c.section,
	t.periods_per_day, te.day_of_week, te.period_number, te.start_time, te.end_time,
	te.subject, te.room, te.teacher_id`

// GormStore implements Store on MySQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetClass(ctx context.Context, classID uint) (*models.Class, error) {
	var class models.Class
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", classID, true).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &class, nil
}

func (s *GormStore) GetTimetable(ctx context.Context, id uint) (*models.Timetable, error) {
	var tt models.Timetable
	if err := s.db.WithContext(ctx).First(&tt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tt, nil
}

func (s *GormStore) ActiveTimetableForClass(ctx context.Context, classID uint) (*models.Timetable, error) {
	var tt models.Timetable
	err := s.db.WithContext(ctx).
		Where("class_id = ? AND is_active = ?", classID, true).
		Order("id DESC").
		First(&tt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tt, nil
}

func (s *GormStore) ActiveEntries(ctx context.Context, timetableID uint) ([]models.TimetableEntry, error) {
	entries := make([]models.TimetableEntry, 0)
	err := s.db.WithContext(ctx).
		Table("timetable_entries AS te").
		Where("te.timetable_id = ? AND te.is_active = ?", timetableID, true).
		Order(dayOrder + ", te.period_number, te.id").
		Find(&entries).Error
	return entries, err
}

func (s *GormStore) CreateTimetable(ctx context.Context, tt *models.Timetable, entries []models.TimetableEntry) ([]models.TimetableEntry, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tt).Error; err != nil {
			return err
		}
		return insertEntries(tx, tt.ID, entries)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *GormStore) ReplaceEntries(ctx context.Context, timetableID uint, entries []models.TimetableEntry) ([]models.TimetableEntry, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("timetable_id = ?", timetableID).Delete(&models.TimetableEntry{}).Error; err != nil {
			return err
		}
		if err := insertEntries(tx, timetableID, entries); err != nil {
			return err
		}
		return tx.Model(&models.Timetable{}).Where("id = ?", timetableID).Update("updated_at", gorm.Expr("NOW()")).Error
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// insertEntries writes one row per entry.
func insertEntries(tx *gorm.DB, timetableID uint, entries []models.TimetableEntry) error {
	for i := range entries {
		entries[i].TimetableID = timetableID
		entries[i].IsActive = true
		if err := tx.Create(&entries[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) DeactivateTimetable(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.Timetable{}).Where("id = ?", id).Update("is_active", false).Error
}

func (s *GormStore) SchoolEntries(ctx context.Context, schoolID uint) ([]models.AnnotatedEntry, error) {
	entries := make([]models.AnnotatedEntry, 0)
	err := s.annotated(ctx).
		Where("c.school_id = ?", schoolID).
		Scan(&entries).Error
	return entries, err
}

func (s *GormStore) TeacherEntries(ctx context.Context, teacherID uint) ([]models.AnnotatedEntry, error) {
	entries := make([]models.AnnotatedEntry, 0)
	err := s.annotated(ctx).
		Where("te.teacher_id = ?", teacherID).
		Scan(&entries).Error
	return entries, err
}

func (s *GormStore) annotated(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("timetable_entries AS te").
		Select(annotatedColumns).
		Joins("JOIN timetables t ON t.id = te.timetable_id").
		Joins("JOIN classes c ON c.id = t.class_id").
		Where("t.is_active = ? AND te.is_active = ?", true, true).
		Order(dayOrder + ", te.period_number, c.grade, c.section")
}

func (s *GormStore) SchoolMaxPeriods(ctx context.Context, schoolID uint) (int, error) {
	var max int
	err := s.db.WithContext(ctx).
		Table("timetables AS t").
		Joins("JOIN classes c ON c.id = t.class_id").
		Where("c.school_id = ? AND t.is_active = ?", schoolID, true).
		Select("COALESCE(MAX(t.periods_per_day), 0)").
		Scan(&max).Error
	return max, err
}
