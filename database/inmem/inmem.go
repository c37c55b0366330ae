// Package inmem keeps every record in process memory. It backs service and
// controller tests in place of MySQL.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"learningcenter_go/models"
)

// Store satisfies the timetable and importer stores and the user lookup of
// the auth middleware.
type Store struct {
	mu sync.RWMutex

	nextID     uint
	schools    map[uint]models.School
	classes    map[uint]models.Class
	users      map[uint]models.User
	timetables map[uint]models.Timetable
	entries    map[uint]models.TimetableEntry
	students   map[uint]models.Student
	uploads    map[uint]models.StudentUpload

	// FailStudentWrite, when set, is consulted before each student insert or
	// update and aborts it with the returned error.
	FailStudentWrite func(st models.Student) error
}

func New() *Store {
	return &Store{
		schools:    make(map[uint]models.School),
		classes:    make(map[uint]models.Class),
		users:      make(map[uint]models.User),
		timetables: make(map[uint]models.Timetable),
		entries:    make(map[uint]models.TimetableEntry),
		students:   make(map[uint]models.Student),
		uploads:    make(map[uint]models.StudentUpload),
	}
}

func (s *Store) stamp(b *models.BaseModel) {
	s.nextID++
	now := time.Now()
	b.ID = s.nextID
	b.CreatedAt = now
	b.UpdatedAt = now
}

// AddSchool stores an active school and returns it with its id.
func (s *Store) AddSchool(school models.School) models.School {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&school.BaseModel)
	school.IsActive = true
	s.schools[school.ID] = school
	return school
}

// AddClass stores an active class and returns it with its id.
func (s *Store) AddClass(class models.Class) models.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&class.BaseModel)
	class.IsActive = true
	s.classes[class.ID] = class
	return class
}

func (s *Store) AddUser(user models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&user.BaseModel)
	if user.Status == "" {
		user.Status = "active"
	}
	s.users[user.ID] = user
	return user
}

// Students returns every stored student ordered by id.
func (s *Store) Students() []models.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Timetables returns every stored timetable ordered by id.
func (s *Store) Timetables() []models.Timetable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Timetable, 0, len(s.timetables))
	for _, tt := range s.timetables {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Uploads returns every upload record ordered by id.
func (s *Store) Uploads() []models.StudentUpload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.StudentUpload, 0, len(s.uploads))
	for _, u := range s.uploads {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntryCount counts entries of a timetable, inactive ones included.
func (s *Store) EntryCount(timetableID uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.TimetableID == timetableID {
			n++
		}
	}
	return n
}

func (s *Store) FindUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) GetSchool(_ context.Context, id uint) (*models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	school, ok := s.schools[id]
	if !ok || !school.IsActive {
		return nil, nil
	}
	return &school, nil
}

func (s *Store) GetClass(_ context.Context, id uint) (*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	class, ok := s.classes[id]
	if !ok || !class.IsActive {
		return nil, nil
	}
	return &class, nil
}
