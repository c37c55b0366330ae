package importer

import (
	"context"
	"errors"
	"time"

	"learningcenter_go/models"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetSchool(ctx context.Context, id uint) (*models.School, error) {
	var school models.School
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&school).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &school, nil
}

func (s *GormStore) GetClass(ctx context.Context, id uint) (*models.Class, error) {
	var class models.Class
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &class, nil
}

func (s *GormStore) FindStudent(ctx context.Context, schoolID uint, firstName, lastName string, dob time.Time) (*models.Student, error) {
	var st models.Student
	err := studentIdentity(s.db.WithContext(ctx), schoolID, firstName, lastName, dob).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// studentIdentity matches names byte for byte, whatever the column collation.
func studentIdentity(db *gorm.DB, schoolID uint, firstName, lastName string, dob time.Time) *gorm.DB {
	return db.Where("school_id = ? AND BINARY first_name = ? AND BINARY last_name = ? AND date_of_birth = ?",
		schoolID, firstName, lastName, dob.Format("2006-01-02")).
		Order("id")
}

func (s *GormStore) CreateStudent(ctx context.Context, st *models.Student) error {
	return s.db.WithContext(ctx).Omit("Class").Create(st).Error
}

// UpdateStudent writes only the fields an import may change.
func (s *GormStore) UpdateStudent(ctx context.Context, st *models.Student) error {
	return s.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", st.ID).Updates(map[string]interface{}{
		"class_id":       st.ClassID,
		"parent_name":    st.ParentName,
		"parent_contact": st.ParentContact,
		"gender":         st.Gender,
	}).Error
}

func (s *GormStore) CreateUpload(ctx context.Context, u *models.StudentUpload) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *GormStore) SetUploadStatus(ctx context.Context, schoolID, classID uint, storedPath, status string) error {
	return s.db.WithContext(ctx).Model(&models.StudentUpload{}).
		Where("stored_path = ? AND school_id = ? AND class_id = ?", storedPath, schoolID, classID).
		Update("status", status).Error
}
