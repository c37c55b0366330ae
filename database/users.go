package database

import (
	"context"
	"errors"

	"learningcenter_go/models"

	"gorm.io/gorm"
)

// UserStore reads users for the authentication gate.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindUser returns (nil, nil) when the user does not exist.
func (s *UserStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
