package inmem

import (
	"context"
	"fmt"
	"time"

	"learningcenter_go/models"
)

const dateLayout = "2006-01-02"

func (s *Store) FindStudent(_ context.Context, schoolID uint, firstName, lastName string, dob time.Time) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := dob.Format(dateLayout)
	for _, st := range s.students {
		if st.SchoolID == schoolID && st.FirstName == firstName && st.LastName == lastName &&
			st.DateOfBirth.Format(dateLayout) == want {
			st := st
			return &st, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateStudent(_ context.Context, st *models.Student) error {
	if s.FailStudentWrite != nil {
		if err := s.FailStudentWrite(*st); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&st.BaseModel)
	s.students[st.ID] = *st
	return nil
}

func (s *Store) UpdateStudent(_ context.Context, st *models.Student) error {
	if s.FailStudentWrite != nil {
		if err := s.FailStudentWrite(*st); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[st.ID]; !ok {
		return fmt.Errorf("student %d not found", st.ID)
	}
	st.UpdatedAt = time.Now()
	s.students[st.ID] = *st
	return nil
}

func (s *Store) CreateUpload(_ context.Context, u *models.StudentUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&u.BaseModel)
	s.uploads[u.ID] = *u
	return nil
}

func (s *Store) SetUploadStatus(_ context.Context, schoolID, classID uint, storedPath, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.uploads {
		if u.StoredPath == storedPath && u.SchoolID == schoolID && u.ClassID == classID {
			u.Status = status
			s.uploads[id] = u
		}
	}
	return nil
}
