package services

import (
	"context"
	"errors"
	"strings"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	GroupRoleOwner  = "owner"
	GroupRoleMember = "member"
)

var ErrInvalidGroupName = errors.New("family group name is required")

type GroupService struct {
	groups GroupStore
	users  UserStore
}

func NewGroupService(groups GroupStore, users UserStore) *GroupService {
	return &GroupService{groups: groups, users: users}
}

// CreateGroup creates a group with ownerID as its first member.
func (s *GroupService) CreateGroup(ctx context.Context, ownerID uuid.UUID, name string) (*models.FamilyGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidGroupName
	}
	group := &models.FamilyGroup{
		ID:      uuid.New(),
		Name:    name,
		OwnerID: ownerID,
		Members: []models.FamilyMember{{UserID: ownerID, Role: GroupRoleOwner}},
	}
	if err := s.groups.CreateGroup(ctx, group); err != nil {
		return nil, persistenceErr("create group", err)
	}
	log.Info().Str("groupID", group.ID.String()).Str("ownerID", ownerID.String()).Msg("Family group created")
	return group, nil
}

// AddMember lets the group owner add another user.
func (s *GroupService) AddMember(ctx context.Context, ownerID, groupID, userID uuid.UUID) error {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			return err
		}
		return persistenceErr("load group", err)
	}
	if group.OwnerID != ownerID {
		return ErrNotGroupMember
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return persistenceErr("load user", err)
	}
	member := &models.FamilyMember{GroupID: groupID, UserID: userID, Role: GroupRoleMember}
	if err := s.groups.AddMember(ctx, member); err != nil {
		return persistenceErr("add group member", err)
	}
	return nil
}

func (s *GroupService) ListGroups(ctx context.Context, userID uuid.UUID) ([]models.FamilyGroup, error) {
	groups, err := s.groups.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, persistenceErr("list groups", err)
	}
	return groups, nil
}
