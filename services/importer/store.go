package importer

import (
	"context"
	"time"

	"learningcenter_go/models"
)

// Store is the persistence the importer needs. Lookups return (nil, nil)
// when nothing matches.
type Store interface {
	GetSchool(ctx context.Context, id uint) (*models.School, error)
	GetClass(ctx context.Context, id uint) (*models.Class, error)
	// FindStudent matches the import identity exactly.
	FindStudent(ctx context.Context, schoolID uint, firstName, lastName string, dob time.Time) (*models.Student, error)
	CreateStudent(ctx context.Context, st *models.Student) error
	UpdateStudent(ctx context.Context, st *models.Student) error
	CreateUpload(ctx context.Context, u *models.StudentUpload) error
	// SetUploadStatus only touches an upload stored for that school and class.
	SetUploadStatus(ctx context.Context, schoolID, classID uint, storedPath, status string) error
}
