package models

import (
	"database/sql/driver"
	"time"
)

// Base model with common fields. Records are retired with an is_active flag
// rather than deleted, so there is no DeletedAt column.
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = append((*j)[0:0], v...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// School model
type School struct {
	BaseModel
	Name     string `json:"name" gorm:"size:255;not null"`
	Code     string `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Address  string `json:"address" gorm:"size:500"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	Classes []Class `json:"classes,omitempty" gorm:"foreignKey:SchoolID"`
}

// Class model
type Class struct {
	BaseModel
	SchoolID uint   `json:"school_id" gorm:"not null;index"`
	Name     string `json:"name" gorm:"size:100;not null"`
	Grade    int    `json:"grade" gorm:"not null;default:0"`
	Section  string `json:"section" gorm:"size:20"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	School School `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
}

// User model. Credentials are issued elsewhere; this table only backs the
// bearer-token gate.
type User struct {
	BaseModel
	Username string  `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Email    *string `json:"email" gorm:"size:255;uniqueIndex"`
	Role     string  `json:"role" gorm:"size:20;not null;type:enum('admin','manager','trainer')"`
	SchoolID *uint   `json:"school_id"`
	Status   string  `json:"status" gorm:"size:20;not null;default:'active';type:enum('active','inactive')"`
}

// DayOfWeek is the weekday a timetable entry occurs on.
type DayOfWeek string

const (
	Monday    DayOfWeek = "Monday"
	Tuesday   DayOfWeek = "Tuesday"
	Wednesday DayOfWeek = "Wednesday"
	Thursday  DayOfWeek = "Thursday"
	Friday    DayOfWeek = "Friday"
	Saturday  DayOfWeek = "Saturday"
	Sunday    DayOfWeek = "Sunday"
)

// Days lists the weekdays in calendar order, Monday first.
var Days = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Index returns the 0-based position of d in the week, or len(Days) for
// unknown values so they sort last.
func (d DayOfWeek) Index() int {
	for i, day := range Days {
		if day == d {
			return i
		}
	}
	return len(Days)
}

// Timetable model. One active timetable per class.
type Timetable struct {
	BaseModel
	ClassID       uint   `json:"class_id" gorm:"not null;index"`
	SchoolID      uint   `json:"school_id" gorm:"not null;index"`
	Name          string `json:"name" gorm:"size:255"`
	PeriodsPerDay int    `json:"periods_per_day" gorm:"not null;default:8"`
	IsActive      bool   `json:"is_active" gorm:"default:true;index"`

	Class   Class            `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Entries []TimetableEntry `json:"entries,omitempty" gorm:"foreignKey:TimetableID"`
}

// TimetableEntry is one scheduled (day, period) slot of a timetable.
type TimetableEntry struct {
	BaseModel
	TimetableID  uint      `json:"timetable_id" gorm:"not null;index"`
	DayOfWeek    DayOfWeek `json:"day_of_week" gorm:"size:10;not null;type:enum('Monday','Tuesday','Wednesday','Thursday','Friday','Saturday','Sunday')"`
	PeriodNumber int       `json:"period_number" gorm:"not null"`
	StartTime    string    `json:"start_time" gorm:"size:5"` // HH:MM
	EndTime      string    `json:"end_time" gorm:"size:5"`   // HH:MM
	Subject      *string   `json:"subject" gorm:"size:255"`
	Room         *string   `json:"room" gorm:"size:100"`
	TeacherID    *uint     `json:"teacher_id" gorm:"index"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
}

// AnnotatedEntry is a timetable entry joined with its owning class and
// timetable. It is read-only and never persisted.
type AnnotatedEntry struct {
	ID            uint      `json:"id"`
	TimetableID   uint      `json:"timetable_id"`
	ClassID       uint      `json:"class_id"`
	ClassName     string    `json:"class_name"`
	Grade         int       `json:"grade"`
	Section       string    `json:"section"`
	PeriodsPerDay int       `json:"periods_per_day"`
	DayOfWeek     DayOfWeek `json:"day_of_week"`
	PeriodNumber  int       `json:"period_number"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Subject       *string   `json:"subject"`
	Room          *string   `json:"room"`
	TeacherID     *uint     `json:"teacher_id"`
}

// ExtraStatus tracks students added outside the normal enrollment flow.
type ExtraStatus string

const (
	ExtraApproved    ExtraStatus = "approved"
	ExtraPending     ExtraStatus = "pending"
	ExtraDisapproved ExtraStatus = "disapproved"
)

// Student model. Identity for import dedup is
// (first_name, last_name, date_of_birth, school_id).
type Student struct {
	BaseModel
	SchoolID       uint        `json:"school_id" gorm:"not null;index:idx_student_identity"`
	ClassID        uint        `json:"class_id" gorm:"not null;index"`
	FirstName      string      `json:"first_name" gorm:"type:varchar(100) COLLATE utf8mb4_bin;not null;index:idx_student_identity"`
	LastName       string      `json:"last_name" gorm:"type:varchar(100) COLLATE utf8mb4_bin;not null;index:idx_student_identity"`
	DateOfBirth    time.Time   `json:"date_of_birth" gorm:"type:date;not null;index:idx_student_identity"`
	Gender         string      `json:"gender" gorm:"size:10;type:enum('Male','Female','Other')"`
	ParentName     string      `json:"parent_name" gorm:"size:200"`
	ParentContact  string      `json:"parent_contact" gorm:"size:20"`
	EnrollmentDate time.Time   `json:"enrollment_date" gorm:"type:date"`
	IsActive       bool        `json:"is_active" gorm:"default:true"`
	ExtraStatus    ExtraStatus `json:"extra_status" gorm:"size:20;not null;default:'approved';type:enum('approved','pending','disapproved')"`

	Class Class `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

// FullName returns "first last".
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentUpload records a stored student import file.
type StudentUpload struct {
	BaseModel
	SchoolID     uint   `json:"school_id" gorm:"not null;index"`
	ClassID      uint   `json:"class_id" gorm:"not null;index"`
	OriginalName string `json:"original_name" gorm:"size:255;not null"`
	StoredPath   string `json:"stored_path" gorm:"size:500;not null"`
	Backend      string `json:"backend" gorm:"size:10;not null;default:'local'"`
	Size         int64  `json:"size"`
	ValidCount   int    `json:"valid_count"`
	InvalidCount int    `json:"invalid_count"`
	Status       string `json:"status" gorm:"size:20;not null;default:'validated';type:enum('validated','confirmed','failed')"`
	UploadedBy   uint   `json:"uploaded_by"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending';type:enum('pending','completed','failed')"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
