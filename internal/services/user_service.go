package services

import (
	"context"
	"errors"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

type ProfileUpdate struct {
	Name      *string `json:"name"`
	Nickname  *string `json:"nickname"`
	BirthYear *int    `json:"birth_year"`
	Hometown  *string `json:"hometown"`
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateOrUpdateUser provisions the user on first sight of their auth id and keeps the
// email in sync afterwards. Credits and profile fields are never touched here.
func (s *UserService) CreateOrUpdateUser(ctx context.Context, authID, email, name string, isAdmin bool) (*models.User, error) {
	user := models.User{
		ID:       uuid.New(),
		AuthID:   authID,
		Email:    email,
		Name:     name,
		IsAdmin:  isAdmin,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "auth_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "is_admin", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return nil, err
	}

	var stored models.User
	if err := s.db.WithContext(ctx).Where("auth_id = ?", authID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*models.User, error) {
	fields := map[string]interface{}{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Nickname != nil {
		fields["nickname"] = *update.Nickname
	}
	if update.BirthYear != nil {
		fields["birth_year"] = *update.BirthYear
	}
	if update.Hometown != nil {
		fields["hometown"] = *update.Hometown
	}
	if len(fields) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return s.GetUser(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(offset).Find(&users).Error
	return users, err
}
