package services

import (
	"context"
	"errors"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultStoryService struct {
	db *gorm.DB
}

func NewStoryServiceDB(db *gorm.DB) *DefaultStoryService {
	return &DefaultStoryService{db: db}
}

func (s *DefaultStoryService) CreateStory(ctx context.Context, story *models.Story) error {
	return s.db.WithContext(ctx).Create(story).Error
}

func (s *DefaultStoryService) GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	var story models.Story
	if err := s.db.WithContext(ctx).Where("id = ?", storyID).First(&story).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}
	return &story, nil
}

func (s *DefaultStoryService) ListStoriesByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Story, error) {
	var stories []models.Story
	result := s.db.WithContext(ctx).Where("author_id = ?", authorID).Order("updated_at desc").Find(&stories)
	return stories, result.Error
}

func (s *DefaultStoryService) ListPublishedStoriesByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Story, error) {
	var stories []models.Story
	result := s.db.WithContext(ctx).
		Where("group_id = ? AND status = ?", groupID, models.StoryPublished).
		Order("updated_at desc").
		Find(&stories)
	return stories, result.Error
}

func (s *DefaultStoryService) UpdateStoryContent(ctx context.Context, storyID uuid.UUID, title, content string, expectedVersion int) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Story{}).
			Where("id = ? AND version = ?", storyID, expectedVersion).
			Updates(map[string]interface{}{
				"title":   title,
				"content": content,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Story{}).Where("id = ?", storyID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrStoryNotFound
			}
			return ErrStoryVersionConflict
		}
		return tx.Where("id = ?", storyID).First(&story).Error
	})
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (s *DefaultStoryService) UpdateStoryStatus(ctx context.Context, storyID uuid.UUID, status models.StoryStatus, groupID *uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Story{}).Where("id = ?", storyID).
		Updates(map[string]interface{}{
			"status":   status,
			"group_id": groupID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStoryNotFound
	}
	return nil
}

// DeleteUntouchedDraft removes a story that is still an unedited draft. It reports
// whether a row was deleted.
func (s *DefaultStoryService) DeleteUntouchedDraft(ctx context.Context, storyID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ? AND version = 1", storyID, models.StoryDraft).
		Delete(&models.Story{})
	return res.RowsAffected == 1, res.Error
}

// CreateGroup inserts the group and its initial members together.
func (s *DefaultStoryService) CreateGroup(ctx context.Context, group *models.FamilyGroup) error {
	return s.db.WithContext(ctx).Create(group).Error
}

func (s *DefaultStoryService) GetGroup(ctx context.Context, groupID uuid.UUID) (*models.FamilyGroup, error) {
	var group models.FamilyGroup
	if err := s.db.WithContext(ctx).Preload("Members").Where("id = ?", groupID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (s *DefaultStoryService) AddMember(ctx context.Context, member *models.FamilyMember) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
}

func (s *DefaultStoryService) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.FamilyMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *DefaultStoryService) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.FamilyGroup, error) {
	var groups []models.FamilyGroup
	result := s.db.WithContext(ctx).
		Preload("Members").
		Joins("JOIN family_members ON family_members.group_id = family_groups.id").
		Where("family_members.user_id = ?", userID).
		Order("family_groups.created_at asc").
		Find(&groups)
	return groups, result.Error
}
