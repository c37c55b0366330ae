package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"learningcenter_go/database/inmem"
	"learningcenter_go/models"
	"learningcenter_go/services/importer"
	"learningcenter_go/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rahulCSV = "first_name,last_name,date_of_birth,gender,parent_name,parent_contact\n" +
	"Rahul,Sharma,15-05-2018,Male,Amit,9876543001\n"

type fixture struct {
	store  *inmem.Store
	root   string
	svc    *importer.Service
	school models.School
	class  models.Class
	other  models.Class
}

func newFixture(t *testing.T, maxSize int64) *fixture {
	t.Helper()
	store := inmem.New()
	school := store.AddSchool(models.School{Name: "Demo School", Code: "DEMO"})
	otherSchool := store.AddSchool(models.School{Name: "Other School", Code: "OTHER"})
	class := store.AddClass(models.Class{SchoolID: school.ID, Name: "Grade 1 A", Grade: 1, Section: "A"})
	other := store.AddClass(models.Class{SchoolID: otherSchool.ID, Name: "Grade 1 A", Grade: 1, Section: "A"})
	root := t.TempDir()
	return &fixture{
		store:  store,
		root:   root,
		svc:    importer.NewService(store, storage.NewLocalStore(root), maxSize),
		school: school,
		class:  class,
		other:  other,
	}
}

func (f *fixture) target() importer.Target {
	return importer.Target{SchoolID: f.school.ID, ClassID: f.class.ID}
}

func (f *fixture) upload(name, contentType, body string) importer.UploadInput {
	return importer.UploadInput{
		Target:      f.target(),
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Data:        strings.NewReader(body),
		UploadedBy:  1,
	}
}

func storedFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func TestValidateUploadReview(t *testing.T) {
	f := newFixture(t, 1<<20)

	res, err := f.svc.ValidateUpload(context.Background(), f.upload("students.csv", "text/csv", rahulCSV))
	require.NoError(t, err)

	assert.Equal(t, 1, res.ValidCount)
	assert.Equal(t, 0, res.InvalidCount)
	require.Len(t, res.Students, 1)
	assert.Equal(t, "2018-05-15", res.Students[0].Normalized.DateOfBirth)
	assert.Equal(t, "+919876543001", res.Students[0].Normalized.ParentContact)
	assert.Equal(t, "students.csv", res.FileName)

	want := filepath.Join(f.root, "students", "1", "3", "students.csv")
	assert.Equal(t, want, res.FilePath)
	assert.FileExists(t, res.FilePath)

	uploads := f.store.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, importer.UploadValidated, uploads[0].Status)
	assert.Equal(t, "local", uploads[0].Backend)
	assert.Empty(t, f.store.Students(), "review must not write students")
}

func TestValidateUploadSuffixesRepeatedNames(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()

	first, err := f.svc.ValidateUpload(ctx, f.upload("students.csv", "text/csv", rahulCSV))
	require.NoError(t, err)
	second, err := f.svc.ValidateUpload(ctx, f.upload("students.csv", "text/csv", rahulCSV))
	require.NoError(t, err)

	assert.NotEqual(t, first.FilePath, second.FilePath)
	assert.True(t, strings.HasSuffix(second.FilePath, "students_1.csv"))
}

func TestValidateUploadRejections(t *testing.T) {
	tests := []struct {
		name    string
		input   func(f *fixture) importer.UploadInput
		wantErr error
	}{
		{
			name:    "pdf",
			input:   func(f *fixture) importer.UploadInput { return f.upload("students.pdf", "application/pdf", "%PDF") },
			wantErr: importer.ErrUnsupportedFormat,
		},
		{
			name:    "header only",
			input:   func(f *fixture) importer.UploadInput { return f.upload("students.csv", "text/csv", "first_name,last_name\n") },
			wantErr: importer.ErrEmptyFile,
		},
		{
			name: "too large",
			input: func(f *fixture) importer.UploadInput {
				return f.upload("students.csv", "text/csv", rahulCSV+strings.Repeat("x", 200))
			},
			wantErr: importer.ErrFileTooLarge,
		},
		{
			name: "unknown school",
			input: func(f *fixture) importer.UploadInput {
				in := f.upload("students.csv", "text/csv", rahulCSV)
				in.SchoolID = 999
				return in
			},
			wantErr: importer.ErrSchoolNotFound,
		},
		{
			name: "class of another school",
			input: func(f *fixture) importer.UploadInput {
				in := f.upload("students.csv", "text/csv", rahulCSV)
				in.ClassID = f.other.ID
				return in
			},
			wantErr: importer.ErrClassNotFound,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 128)
			_, err := f.svc.ValidateUpload(context.Background(), tc.input(f))
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.Empty(t, storedFiles(t, f.root), "rejected upload must not stay on disk")
			assert.Empty(t, f.store.Uploads())
		})
	}
}

func TestValidateUploadUnderstatedSize(t *testing.T) {
	f := newFixture(t, 64)
	in := f.upload("students.csv", "text/csv", rahulCSV+strings.Repeat("x", 100))
	in.Size = 10

	_, err := f.svc.ValidateUpload(context.Background(), in)
	assert.ErrorIs(t, err, importer.ErrFileTooLarge)
}

func rahul() importer.Fields {
	return importer.Fields{
		FirstName:     "Rahul",
		LastName:      "Sharma",
		DateOfBirth:   "2018-05-15",
		Gender:        "Male",
		ParentName:    "Amit",
		ParentContact: "+919876543001",
	}
}

func TestConfirmSameBatchDuplicateUpdates(t *testing.T) {
	f := newFixture(t, 1<<20)

	res, err := f.svc.Confirm(context.Background(), f.target(), []importer.Fields{rahul(), rahul()}, "")
	require.NoError(t, err)

	require.Len(t, res.Success, 2)
	assert.Empty(t, res.Errors)
	assert.Equal(t, importer.ActionCreated, res.Success[0].Action)
	assert.Equal(t, importer.ActionUpdated, res.Success[1].Action)
	assert.Equal(t, "Rahul Sharma", res.Success[1].Name)

	students := f.store.Students()
	require.Len(t, students, 1)
	st := students[0]
	assert.True(t, st.IsActive)
	assert.Equal(t, models.ExtraApproved, st.ExtraStatus)
	assert.Equal(t, "2018-05-15", st.DateOfBirth.Format("2006-01-02"))
	assert.False(t, st.EnrollmentDate.IsZero())
}

func TestConfirmUpdatesExistingStudent(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()
	second := f.store.AddClass(models.Class{SchoolID: f.school.ID, Name: "Grade 1 B", Grade: 1, Section: "B"})

	_, err := f.svc.Confirm(ctx, f.target(), []importer.Fields{rahul()}, "")
	require.NoError(t, err)

	moved := rahul()
	moved.ParentName = "Sunita"
	moved.ParentContact = "98765 43009"
	moved.Gender = "other"
	res, err := f.svc.Confirm(ctx, importer.Target{SchoolID: f.school.ID, ClassID: second.ID}, []importer.Fields{moved}, "")
	require.NoError(t, err)
	require.Len(t, res.Success, 1)
	assert.Equal(t, importer.ActionUpdated, res.Success[0].Action)

	students := f.store.Students()
	require.Len(t, students, 1)
	assert.Equal(t, second.ID, students[0].ClassID)
	assert.Equal(t, "Sunita", students[0].ParentName)
	assert.Equal(t, "+919876543009", students[0].ParentContact)
	assert.Equal(t, "Other", students[0].Gender)
}

func TestConfirmContinuesPastFailures(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.store.FailStudentWrite = func(st models.Student) error {
		if st.FirstName == "Broken" {
			return errors.New("duplicate entry")
		}
		return nil
	}

	invalid := rahul()
	invalid.FirstName = "Asha"
	invalid.Gender = "x"
	broken := rahul()
	broken.FirstName = "Broken"
	priya := rahul()
	priya.FirstName = "Priya"
	priya.EnrollmentDate = "2024-06-01"

	res, err := f.svc.Confirm(context.Background(), f.target(), []importer.Fields{invalid, broken, rahul(), priya}, "")
	require.NoError(t, err)

	require.Len(t, res.Success, 2)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0].Message, "Gender")
	assert.Equal(t, "Asha", res.Errors[0].Student.FirstName)
	assert.Contains(t, res.Errors[1].Message, "duplicate entry")
	assert.Equal(t, "Broken", res.Errors[1].Student.FirstName)

	students := f.store.Students()
	require.Len(t, students, 2)
	assert.Equal(t, "2024-06-01", students[1].EnrollmentDate.Format("2006-01-02"))
}

func TestConfirmRejectsForeignClass(t *testing.T) {
	f := newFixture(t, 1<<20)
	_, err := f.svc.Confirm(context.Background(), importer.Target{SchoolID: f.school.ID, ClassID: f.other.ID}, []importer.Fields{rahul()}, "")
	assert.ErrorIs(t, err, importer.ErrClassNotFound)
	assert.Empty(t, f.store.Students())
}

func TestConfirmMarksUploadConfirmed(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()

	review, err := f.svc.ValidateUpload(ctx, f.upload("students.csv", "text/csv", rahulCSV))
	require.NoError(t, err)

	rows := make([]importer.Fields, 0, len(review.Students))
	for _, s := range review.Students {
		rows = append(rows, s.Normalized)
	}
	res, err := f.svc.Confirm(ctx, f.target(), rows, review.FilePath)
	require.NoError(t, err)
	assert.Len(t, res.Success, 1)

	uploads := f.store.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, importer.UploadConfirmed, uploads[0].Status)
}

func TestConfirmNameCaseIsPartOfIdentity(t *testing.T) {
	f := newFixture(t, 1<<20)

	lower := rahul()
	lower.FirstName = "rahul"
	lower.ParentName = "Meena"
	res, err := f.svc.Confirm(context.Background(), f.target(), []importer.Fields{rahul(), lower}, "")
	require.NoError(t, err)

	require.Len(t, res.Success, 2)
	assert.Equal(t, importer.ActionCreated, res.Success[0].Action)
	assert.Equal(t, importer.ActionCreated, res.Success[1].Action)

	students := f.store.Students()
	require.Len(t, students, 2)
	assert.Equal(t, "Rahul", students[0].FirstName)
	assert.Equal(t, "Amit", students[0].ParentName)
	assert.Equal(t, "rahul", students[1].FirstName)
}

func TestConfirmLeavesOtherSchoolsUploadAlone(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()

	in := f.upload("students.csv", "text/csv", rahulCSV)
	in.Target = importer.Target{SchoolID: f.other.SchoolID, ClassID: f.other.ID}
	foreign, err := f.svc.ValidateUpload(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, f.target(), []importer.Fields{rahul()}, foreign.FilePath)
	require.NoError(t, err)

	uploads := f.store.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, importer.UploadValidated, uploads[0].Status)
}

func TestValidateUploadKeepsExtensionOfDottedName(t *testing.T) {
	f := newFixture(t, 1<<20)

	res, err := f.svc.ValidateUpload(context.Background(), f.upload("students..csv", "text/csv", rahulCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ValidCount)
	assert.True(t, strings.HasSuffix(res.FilePath, ".csv"))
	assert.FileExists(t, res.FilePath)
}
