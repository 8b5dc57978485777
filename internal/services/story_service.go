package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type StoryStore interface {
	CreateStory(ctx context.Context, story *models.Story) error
	GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error)
	ListStoriesByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Story, error)
	ListPublishedStoriesByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Story, error)
	// UpdateStoryContent writes title and content only if the stored version still
	// equals expectedVersion, and bumps the version.
	UpdateStoryContent(ctx context.Context, storyID uuid.UUID, title, content string, expectedVersion int) (*models.Story, error)
	UpdateStoryStatus(ctx context.Context, storyID uuid.UUID, status models.StoryStatus, groupID *uuid.UUID) error
	DeleteUntouchedDraft(ctx context.Context, storyID uuid.UUID) (bool, error)
}

type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.FamilyGroup) error
	GetGroup(ctx context.Context, groupID uuid.UUID) (*models.FamilyGroup, error)
	AddMember(ctx context.Context, member *models.FamilyMember) error
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.FamilyGroup, error)
}

type StoryService struct {
	stories   StoryStore
	groups    GroupStore
	sessions  SessionStore
	storage   CloudStorageManager
	bucket    string
	publisher Publisher
}

func NewStoryService(stories StoryStore, groups GroupStore, sessions SessionStore, storage CloudStorageManager, bucket string, publisher Publisher) *StoryService {
	return &StoryService{
		stories:   stories,
		groups:    groups,
		sessions:  sessions,
		storage:   storage,
		bucket:    bucket,
		publisher: publisher,
	}
}

func (s *StoryService) CreateDraft(ctx context.Context, authorID uuid.UUID, title string) (*models.Story, error) {
	story := &models.Story{
		ID:       uuid.New(),
		Title:    title,
		AuthorID: authorID,
		Status:   models.StoryDraft,
		Version:  1,
	}
	if err := s.stories.CreateStory(ctx, story); err != nil {
		return nil, persistenceErr("create story", err)
	}
	return story, nil
}

// DiscardDraft deletes a draft that was never edited, such as one created for an
// interview that failed to start. Edited or published stories are kept.
func (s *StoryService) DiscardDraft(ctx context.Context, authorID, storyID uuid.UUID) error {
	if _, err := s.ownStory(ctx, authorID, storyID); err != nil {
		return err
	}
	deleted, err := s.stories.DeleteUntouchedDraft(ctx, storyID)
	if err != nil {
		return persistenceErr("discard draft", err)
	}
	if deleted {
		log.Info().Str("storyID", storyID.String()).Msg("Unused draft discarded")
	}
	return nil
}

func (s *StoryService) ListStories(ctx context.Context, authorID uuid.UUID) ([]models.Story, error) {
	stories, err := s.stories.ListStoriesByAuthor(ctx, authorID)
	if err != nil {
		return nil, persistenceErr("list stories", err)
	}
	return stories, nil
}

// GetStory returns a story the viewer may read: their own, or one published to a
// group they belong to.
func (s *StoryService) GetStory(ctx context.Context, viewerID, storyID uuid.UUID) (*models.Story, error) {
	story, err := s.loadStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.AuthorID == viewerID {
		return story, nil
	}
	if story.Status != models.StoryPublished || story.GroupID == nil {
		return nil, ErrStoryNotFound
	}
	member, err := s.groups.IsMember(ctx, *story.GroupID, viewerID)
	if err != nil {
		return nil, persistenceErr("check group membership", err)
	}
	if !member {
		return nil, ErrStoryNotFound
	}
	return story, nil
}

// Autosave stores an edit. A stale expectedVersion returns ErrStoryVersionConflict.
func (s *StoryService) Autosave(ctx context.Context, authorID, storyID uuid.UUID, title, content string, expectedVersion int) (*models.Story, error) {
	if _, err := s.ownStory(ctx, authorID, storyID); err != nil {
		return nil, err
	}
	story, err := s.stories.UpdateStoryContent(ctx, storyID, title, content, expectedVersion)
	if err != nil {
		if errors.Is(err, ErrStoryVersionConflict) {
			return nil, err
		}
		return nil, persistenceErr("autosave story", err)
	}
	return story, nil
}

// AdoptPreview copies a completed session's narrative into its story draft and moves
// the session to preview.
func (s *StoryService) AdoptPreview(ctx context.Context, userID, sessionID uuid.UUID) (*models.Story, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, persistenceErr("load session", err)
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if session.Status != models.SessionCompleted {
		return nil, fmt.Errorf("%w: adopt preview in %s", ErrInvalidSessionState, session.Status)
	}

	story, err := s.ownStory(ctx, userID, session.StoryID)
	if err != nil {
		return nil, err
	}
	updated, err := s.stories.UpdateStoryContent(ctx, story.ID, story.Title, session.PreviewContent, story.Version)
	if err != nil {
		if errors.Is(err, ErrStoryVersionConflict) {
			return nil, err
		}
		return nil, persistenceErr("adopt preview", err)
	}
	if err := s.sessions.UpdateSessionStatus(ctx, sessionID, models.SessionPreview, ""); err != nil {
		return nil, persistenceErr("mark session preview", err)
	}

	log.Info().Str("sessionID", sessionID.String()).Str("storyID", story.ID.String()).Msg("Preview adopted into story")
	if s.publisher != nil {
		s.publisher.Publish(SessionTopic(sessionID), SessionEvent{
			Type:      "session_update",
			SessionID: sessionID.String(),
			Status:    models.SessionPreview,
		})
	}
	return updated, nil
}

// Publish makes a story published (optionally shared with a family group) or private.
func (s *StoryService) Publish(ctx context.Context, authorID, storyID uuid.UUID, status models.StoryStatus, groupID *uuid.UUID) (*models.Story, error) {
	if status != models.StoryPublished && status != models.StoryPrivate {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoryStatus, status)
	}
	story, err := s.ownStory(ctx, authorID, storyID)
	if err != nil {
		return nil, err
	}
	if status == models.StoryPrivate {
		groupID = nil
	}
	if groupID != nil {
		if _, err := s.groups.GetGroup(ctx, *groupID); err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				return nil, err
			}
			return nil, persistenceErr("load group", err)
		}
		member, err := s.groups.IsMember(ctx, *groupID, authorID)
		if err != nil {
			return nil, persistenceErr("check group membership", err)
		}
		if !member {
			return nil, ErrNotGroupMember
		}
	}

	if err := s.stories.UpdateStoryStatus(ctx, storyID, status, groupID); err != nil {
		return nil, persistenceErr("publish story", err)
	}
	story.Status = status
	story.GroupID = groupID

	if status == models.StoryPublished {
		s.archive(ctx, story)
	} else {
		s.unarchive(ctx, story)
	}
	return story, nil
}

// ListGroupStories returns the stories published to a group the viewer belongs to.
func (s *StoryService) ListGroupStories(ctx context.Context, viewerID, groupID uuid.UUID) ([]models.Story, error) {
	member, err := s.groups.IsMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, persistenceErr("check group membership", err)
	}
	if !member {
		return nil, ErrNotGroupMember
	}
	stories, err := s.stories.ListPublishedStoriesByGroup(ctx, groupID)
	if err != nil {
		return nil, persistenceErr("list group stories", err)
	}
	return stories, nil
}

func (s *StoryService) ExportPDF(ctx context.Context, viewerID, storyID uuid.UUID) ([]byte, error) {
	story, err := s.GetStory(ctx, viewerID, storyID)
	if err != nil {
		return nil, err
	}
	return RenderStoryPDF(story)
}

// archive copies a published story to cloud storage. Failures are logged only.
func (s *StoryService) archive(ctx context.Context, story *models.Story) {
	if !s.archiving() {
		return
	}
	objectName := ArchiveObjectName(story)
	if err := s.storage.UploadFile(ctx, s.bucket, objectName, bytes.NewReader(storyMarkdown(story))); err != nil {
		log.Warn().Err(err).Str("storyID", story.ID.String()).Str("object", objectName).Msg("Failed to archive story")
		return
	}
	log.Info().Str("storyID", story.ID.String()).Str("object", objectName).Msg("Story archived")
}

// unarchive removes the archived copy of a story that is no longer published.
func (s *StoryService) unarchive(ctx context.Context, story *models.Story) {
	if !s.archiving() {
		return
	}
	objectName := ArchiveObjectName(story)
	if err := s.storage.DeleteFile(ctx, s.bucket, objectName); err != nil {
		log.Warn().Err(err).Str("storyID", story.ID.String()).Str("object", objectName).Msg("Failed to remove archived story")
		return
	}
	log.Info().Str("storyID", story.ID.String()).Str("object", objectName).Msg("Archived story removed")
}

// ListArchivedStories returns the archive object names of an author's published stories.
func (s *StoryService) ListArchivedStories(ctx context.Context, authorID uuid.UUID) ([]string, error) {
	if !s.archiving() {
		return []string{}, nil
	}
	names, err := s.storage.ListFiles(ctx, s.bucket, archivePrefix(authorID))
	if err != nil {
		return nil, persistenceErr("list archive", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *StoryService) archiving() bool {
	return s.storage != nil && s.bucket != ""
}

func archivePrefix(authorID uuid.UUID) string {
	return fmt.Sprintf("stories/%s/", authorID)
}

func ArchiveObjectName(story *models.Story) string {
	return archivePrefix(story.AuthorID) + story.ID.String() + ".md"
}

func storyMarkdown(story *models.Story) []byte {
	var b strings.Builder
	if story.Title != "" {
		b.WriteString("# ")
		b.WriteString(story.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(story.Content)
	b.WriteString("\n")
	return []byte(b.String())
}

func (s *StoryService) loadStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	story, err := s.stories.GetStory(ctx, storyID)
	if err != nil {
		if errors.Is(err, ErrStoryNotFound) {
			return nil, err
		}
		return nil, persistenceErr("load story", err)
	}
	return story, nil
}

func (s *StoryService) ownStory(ctx context.Context, authorID, storyID uuid.UUID) (*models.Story, error) {
	story, err := s.loadStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.AuthorID != authorID {
		return nil, ErrStoryNotFound
	}
	return story, nil
}
