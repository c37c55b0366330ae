package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"learningcenter_go/models"
	"learningcenter_go/storage"
	"learningcenter_go/utils"

	"github.com/sirupsen/logrus"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"

	UploadValidated = "validated"
	UploadConfirmed = "confirmed"
)

type Service struct {
	store       Store
	uploads     storage.UploadStore
	maxFileSize int64
}

func NewService(store Store, uploads storage.UploadStore, maxFileSize int64) *Service {
	return &Service{store: store, uploads: uploads, maxFileSize: maxFileSize}
}

// Target is the school and class an import writes into.
type Target struct {
	SchoolID uint
	ClassID  uint
}

type UploadInput struct {
	Target
	FileName    string
	ContentType string
	Size        int64
	Data        io.Reader
	UploadedBy  uint
}

type UploadResult struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	ReviewResult
}

// Outcome is a row that was written.
type Outcome struct {
	Action    string `json:"action"`
	Name      string `json:"name"`
	StudentID uint   `json:"student_id"`
}

// Failure is a row that was not written.
type Failure struct {
	Message string `json:"message"`
	Student Fields `json:"student"`
}

type ConfirmResult struct {
	Success []Outcome `json:"success"`
	Errors  []Failure `json:"errors"`
}

type rowResult struct {
	outcome *Outcome
	failure *Failure
}

// ResolveTarget checks that the class exists and belongs to the school.
func (s *Service) ResolveTarget(ctx context.Context, t Target) (*models.Class, error) {
	school, err := s.store.GetSchool(ctx, t.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("load school: %w", err)
	}
	if school == nil {
		return nil, ErrSchoolNotFound
	}
	class, err := s.store.GetClass(ctx, t.ClassID)
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	if class == nil || class.SchoolID != school.ID {
		return nil, ErrClassNotFound
	}
	return class, nil
}

// ValidateUpload stores the uploaded file, parses it and returns the review
// payload. Nothing is written to students. The stored file is removed again
// if the upload cannot be reviewed.
func (s *Service) ValidateUpload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if _, err := s.ResolveTarget(ctx, in.Target); err != nil {
		return nil, err
	}
	name := utils.SanitizeFilename(in.FileName)
	if _, err := CheckFormat(name, in.ContentType); err != nil {
		return nil, err
	}
	if s.maxFileSize > 0 && in.Size > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	reader := in.Data
	if s.maxFileSize > 0 {
		reader = io.LimitReader(in.Data, s.maxFileSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	path, err := s.uploads.Save(ctx, storage.StudentFolder(in.SchoolID, in.ClassID), name, data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	rows, err := Parse(name, in.ContentType, bytes.NewReader(data))
	if err != nil {
		s.discard(ctx, path)
		return nil, err
	}
	review := Review(rows)

	record := &models.StudentUpload{
		SchoolID:     in.SchoolID,
		ClassID:      in.ClassID,
		OriginalName: in.FileName,
		StoredPath:   path,
		Backend:      s.uploads.Backend(),
		Size:         int64(len(data)),
		ValidCount:   review.ValidCount,
		InvalidCount: review.InvalidCount,
		Status:       UploadValidated,
		UploadedBy:   in.UploadedBy,
	}
	if err := s.store.CreateUpload(ctx, record); err != nil {
		s.discard(ctx, path)
		return nil, fmt.Errorf("record upload: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"school_id": in.SchoolID,
		"class_id":  in.ClassID,
		"file":      path,
		"valid":     review.ValidCount,
		"invalid":   review.InvalidCount,
	}).Info("student import reviewed")

	return &UploadResult{FilePath: path, FileName: name, ReviewResult: review}, nil
}

func (s *Service) discard(ctx context.Context, path string) {
	if err := s.uploads.Remove(ctx, path); err != nil {
		logrus.WithError(err).WithField("file", path).Warn("failed to remove rejected upload")
	}
}

// Confirm upserts every row on its own. A row that fails is reported and
// the rest carry on; nothing is rolled back.
func (s *Service) Confirm(ctx context.Context, t Target, students []Fields, filePath string) (*ConfirmResult, error) {
	class, err := s.ResolveTarget(ctx, t)
	if err != nil {
		return nil, err
	}

	results := make([]rowResult, len(students))
	for i, in := range students {
		results[i] = s.upsertRow(ctx, class, in)
	}
	out := partition(results)

	if filePath != "" {
		if err := s.store.SetUploadStatus(ctx, class.SchoolID, class.ID, filePath, UploadConfirmed); err != nil {
			logrus.WithError(err).WithField("file", filePath).Warn("failed to mark upload confirmed")
		}
	}

	logrus.WithFields(logrus.Fields{
		"school_id": t.SchoolID,
		"class_id":  t.ClassID,
		"written":   len(out.Success),
		"failed":    len(out.Errors),
	}).Info("student import confirmed")
	return out, nil
}

func (s *Service) upsertRow(ctx context.Context, class *models.Class, in Fields) rowResult {
	n, errs := Check(in)
	if len(errs) > 0 {
		return failed(strings.Join(errs, "; "), in)
	}
	dob, _ := utils.ParseCanonicalDate(n.DateOfBirth)

	existing, err := s.store.FindStudent(ctx, class.SchoolID, n.FirstName, n.LastName, dob)
	if err != nil {
		return failed(fmt.Sprintf("failed to look up student: %v", err), in)
	}

	if existing != nil {
		existing.ClassID = class.ID
		existing.ParentName = n.ParentName
		existing.ParentContact = n.ParentContact
		existing.Gender = n.Gender
		if err := s.store.UpdateStudent(ctx, existing); err != nil {
			return failed(fmt.Sprintf("failed to update student: %v", err), in)
		}
		return rowResult{outcome: &Outcome{Action: ActionUpdated, Name: existing.FullName(), StudentID: existing.ID}}
	}

	enrolled := today()
	if n.EnrollmentDate != "" {
		if d, err := utils.ParseCanonicalDate(n.EnrollmentDate); err == nil {
			enrolled = d
		}
	}
	st := &models.Student{
		SchoolID:       class.SchoolID,
		ClassID:        class.ID,
		FirstName:      n.FirstName,
		LastName:       n.LastName,
		DateOfBirth:    dob,
		Gender:         n.Gender,
		ParentName:     n.ParentName,
		ParentContact:  n.ParentContact,
		EnrollmentDate: enrolled,
		IsActive:       true,
		ExtraStatus:    models.ExtraApproved,
	}
	if err := s.store.CreateStudent(ctx, st); err != nil {
		return failed(fmt.Sprintf("failed to create student: %v", err), in)
	}
	return rowResult{outcome: &Outcome{Action: ActionCreated, Name: st.FullName(), StudentID: st.ID}}
}

func failed(msg string, in Fields) rowResult {
	return rowResult{failure: &Failure{Message: msg, Student: in}}
}

func partition(results []rowResult) *ConfirmResult {
	out := &ConfirmResult{Success: make([]Outcome, 0), Errors: make([]Failure, 0)}
	for _, r := range results {
		if r.failure != nil {
			out.Errors = append(out.Errors, *r.failure)
			continue
		}
		out.Success = append(out.Success, *r.outcome)
	}
	return out
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}
