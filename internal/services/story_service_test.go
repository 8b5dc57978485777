package services_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"memory_stitcher_go_backend/internal/models"
	"memory_stitcher_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memStoryStore struct {
	mu      sync.Mutex
	stories map[uuid.UUID]models.Story
	groups  map[uuid.UUID]models.FamilyGroup
}

func newMemStoryStore() *memStoryStore {
	return &memStoryStore{
		stories: make(map[uuid.UUID]models.Story),
		groups:  make(map[uuid.UUID]models.FamilyGroup),
	}
}

func (s *memStoryStore) CreateStory(ctx context.Context, story *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	story.CreatedAt, story.UpdatedAt = time.Now(), time.Now()
	s.stories[story.ID] = *story
	return nil
}

func (s *memStoryStore) GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok {
		return nil, services.ErrStoryNotFound
	}
	return &story, nil
}

func (s *memStoryStore) ListStoriesByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Story
	for _, st := range s.stories {
		if st.AuthorID == authorID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *memStoryStore) ListPublishedStoriesByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Story
	for _, st := range s.stories {
		if st.GroupID != nil && *st.GroupID == groupID && st.Status == models.StoryPublished {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *memStoryStore) UpdateStoryContent(ctx context.Context, storyID uuid.UUID, title, content string, expectedVersion int) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok {
		return nil, services.ErrStoryNotFound
	}
	if story.Version != expectedVersion {
		return nil, services.ErrStoryVersionConflict
	}
	story.Title, story.Content = title, content
	story.Version++
	story.UpdatedAt = time.Now()
	s.stories[storyID] = story
	return &story, nil
}

func (s *memStoryStore) UpdateStoryStatus(ctx context.Context, storyID uuid.UUID, status models.StoryStatus, groupID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok {
		return services.ErrStoryNotFound
	}
	story.Status, story.GroupID = status, groupID
	s.stories[storyID] = story
	return nil
}

func (s *memStoryStore) DeleteUntouchedDraft(ctx context.Context, storyID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[storyID]
	if !ok || story.Status != models.StoryDraft || story.Version != 1 {
		return false, nil
	}
	delete(s.stories, storyID)
	return true, nil
}

func (s *memStoryStore) CreateGroup(ctx context.Context, group *models.FamilyGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range group.Members {
		group.Members[i].GroupID = group.ID
	}
	s.groups[group.ID] = *group
	return nil
}

func (s *memStoryStore) GetGroup(ctx context.Context, groupID uuid.UUID) (*models.FamilyGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, services.ErrGroupNotFound
	}
	return &g, nil
}

func (s *memStoryStore) AddMember(ctx context.Context, member *models.FamilyMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.groups[member.GroupID]
	for _, m := range g.Members {
		if m.UserID == member.UserID {
			return nil
		}
	}
	g.Members = append(g.Members, *member)
	s.groups[member.GroupID] = g
	return nil
}

func (s *memStoryStore) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.groups[groupID].Members {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStoryStore) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.FamilyGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FamilyGroup
	for _, g := range s.groups {
		for _, m := range g.Members {
			if m.UserID == userID {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

type storyFixture struct {
	sessions *memStore
	stories  *memStoryStore
	storage  *MockCloudStorage
	svc      *services.StoryService
	groups   *services.GroupService
	author   models.User
}

func newStoryFixture(t *testing.T, bucket string) *storyFixture {
	t.Helper()
	sessions := newMemStore()
	stories := newMemStoryStore()
	storage := new(MockCloudStorage)
	author := sessions.addUser(models.User{Name: "Ada"})
	return &storyFixture{
		sessions: sessions,
		stories:  stories,
		storage:  storage,
		svc:      services.NewStoryService(stories, stories, sessions, storage, bucket, &recordingPublisher{}),
		groups:   services.NewGroupService(stories, sessions),
		author:   author,
	}
}

func TestAutosaveVersionConflict(t *testing.T) {
	f := newStoryFixture(t, "")
	ctx := context.Background()

	story, err := f.svc.CreateDraft(ctx, f.author.ID, "Summer of 1962")
	require.NoError(t, err)
	assert.Equal(t, 1, story.Version)

	saved, err := f.svc.Autosave(ctx, f.author.ID, story.ID, "Summer of 1962", "It was hot.", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)

	_, err = f.svc.Autosave(ctx, f.author.ID, story.ID, "Summer of 1962", "A stale tab.", 1)
	assert.ErrorIs(t, err, services.ErrStoryVersionConflict)

	got, err := f.svc.GetStory(ctx, f.author.ID, story.ID)
	require.NoError(t, err)
	assert.Equal(t, "It was hot.", got.Content)

	_, err = f.svc.Autosave(ctx, uuid.New(), story.ID, "x", "y", 2)
	assert.ErrorIs(t, err, services.ErrStoryNotFound)
}

func TestDiscardDraftKeepsEditedStories(t *testing.T) {
	f := newStoryFixture(t, "")
	ctx := context.Background()

	unused, err := f.svc.CreateDraft(ctx, f.author.ID, "Untitled")
	require.NoError(t, err)
	edited, err := f.svc.CreateDraft(ctx, f.author.ID, "Winters")
	require.NoError(t, err)
	_, err = f.svc.Autosave(ctx, f.author.ID, edited.ID, "Winters", "Snow to the sills.", 1)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DiscardDraft(ctx, uuid.New(), unused.ID), services.ErrStoryNotFound)

	require.NoError(t, f.svc.DiscardDraft(ctx, f.author.ID, unused.ID))
	require.NoError(t, f.svc.DiscardDraft(ctx, f.author.ID, edited.ID))

	_, err = f.svc.GetStory(ctx, f.author.ID, unused.ID)
	assert.ErrorIs(t, err, services.ErrStoryNotFound)
	_, err = f.svc.GetStory(ctx, f.author.ID, edited.ID)
	assert.NoError(t, err)
}

func TestAdoptPreview(t *testing.T) {
	f := newStoryFixture(t, "")
	ctx := context.Background()

	story, err := f.svc.CreateDraft(ctx, f.author.ID, "The Harbour")
	require.NoError(t, err)
	session := &models.ChatSession{ID: uuid.New(), UserID: f.author.ID, StoryID: story.ID, Status: models.SessionActive}
	require.NoError(t, f.sessions.CreateSession(ctx, session))

	_, err = f.svc.AdoptPreview(ctx, f.author.ID, session.ID)
	assert.ErrorIs(t, err, services.ErrInvalidSessionState)

	require.NoError(t, f.sessions.CompleteSession(ctx, session.ID, "Boats came in at dawn."))

	_, err = f.svc.AdoptPreview(ctx, uuid.New(), session.ID)
	assert.ErrorIs(t, err, services.ErrSessionNotFound)

	adopted, err := f.svc.AdoptPreview(ctx, f.author.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Boats came in at dawn.", adopted.Content)
	assert.Equal(t, 2, adopted.Version)
	assert.Equal(t, models.SessionPreview, f.sessions.session(session.ID).Status)
}

func TestPublishToFamilyGroup(t *testing.T) {
	f := newStoryFixture(t, "archive-bucket")
	ctx := context.Background()
	relative := f.sessions.addUser(models.User{Name: "Grace"})
	outsider := f.sessions.addUser(models.User{Name: "Eve"})

	group, err := f.groups.CreateGroup(ctx, f.author.ID, "  The Lovelaces ")
	require.NoError(t, err)
	assert.Equal(t, "The Lovelaces", group.Name)
	require.NoError(t, f.groups.AddMember(ctx, f.author.ID, group.ID, relative.ID))
	assert.ErrorIs(t, f.groups.AddMember(ctx, relative.ID, group.ID, outsider.ID), services.ErrNotGroupMember)

	story, err := f.svc.CreateDraft(ctx, f.author.ID, "Ledgers")
	require.NoError(t, err)
	_, err = f.svc.Autosave(ctx, f.author.ID, story.ID, "Ledgers", "Numbers were my first language.", 1)
	require.NoError(t, err)

	f.storage.On("UploadFile", mock.Anything, "archive-bucket", services.ArchiveObjectName(story), mock.MatchedBy(func(r io.Reader) bool {
		b, _ := io.ReadAll(r)
		return bytes.Equal(b, []byte("# Ledgers\n\nNumbers were my first language.\n"))
	})).Return(nil).Once()

	_, err = f.svc.Publish(ctx, f.author.ID, story.ID, models.StoryDraft, nil)
	assert.ErrorIs(t, err, services.ErrInvalidStoryStatus)

	published, err := f.svc.Publish(ctx, f.author.ID, story.ID, models.StoryPublished, &group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoryPublished, published.Status)
	f.storage.AssertExpectations(t)

	_, err = f.svc.GetStory(ctx, relative.ID, story.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetStory(ctx, outsider.ID, story.ID)
	assert.ErrorIs(t, err, services.ErrStoryNotFound)

	shared, err := f.svc.ListGroupStories(ctx, relative.ID, group.ID)
	require.NoError(t, err)
	assert.Len(t, shared, 1)
	_, err = f.svc.ListGroupStories(ctx, outsider.ID, group.ID)
	assert.ErrorIs(t, err, services.ErrNotGroupMember)

	f.storage.On("DeleteFile", mock.Anything, "archive-bucket", services.ArchiveObjectName(story)).Return(nil).Once()

	private, err := f.svc.Publish(ctx, f.author.ID, story.ID, models.StoryPrivate, &group.ID)
	require.NoError(t, err)
	assert.Nil(t, private.GroupID)
	f.storage.AssertExpectations(t)
	_, err = f.svc.GetStory(ctx, relative.ID, story.ID)
	assert.ErrorIs(t, err, services.ErrStoryNotFound)

	groups, err := f.groups.ListGroups(ctx, relative.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestArchiveFollowsPublication(t *testing.T) {
	f := newStoryFixture(t, "archive-bucket")
	ctx := context.Background()

	story, err := f.svc.CreateDraft(ctx, f.author.ID, "Night Shift")
	require.NoError(t, err)
	objectName := services.ArchiveObjectName(story)
	assert.Equal(t, "stories/"+f.author.ID.String()+"/"+story.ID.String()+".md", objectName)

	f.storage.On("UploadFile", mock.Anything, "archive-bucket", objectName, mock.Anything).Return(nil).Once()
	_, err = f.svc.Publish(ctx, f.author.ID, story.ID, models.StoryPublished, nil)
	require.NoError(t, err)

	f.storage.On("ListFiles", mock.Anything, "archive-bucket", "stories/"+f.author.ID.String()+"/").
		Return([]string{objectName}, nil).Once()
	names, err := f.svc.ListArchivedStories(ctx, f.author.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{objectName}, names)

	f.storage.On("DeleteFile", mock.Anything, "archive-bucket", objectName).Return(nil).Once()
	_, err = f.svc.Publish(ctx, f.author.ID, story.ID, models.StoryPrivate, nil)
	require.NoError(t, err)

	f.storage.On("ListFiles", mock.Anything, "archive-bucket", "stories/"+f.author.ID.String()+"/").
		Return(nil, nil).Once()
	names, err = f.svc.ListArchivedStories(ctx, f.author.ID)
	require.NoError(t, err)
	assert.Empty(t, names)
	f.storage.AssertExpectations(t)
}

func TestListArchivedStoriesWithoutBucket(t *testing.T) {
	f := newStoryFixture(t, "")

	names, err := f.svc.ListArchivedStories(context.Background(), f.author.ID)
	require.NoError(t, err)
	assert.Empty(t, names)
	f.storage.AssertNotCalled(t, "ListFiles", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishRequiresGroupMembership(t *testing.T) {
	f := newStoryFixture(t, "")
	ctx := context.Background()
	other := f.sessions.addUser(models.User{Name: "Grace"})

	group, err := f.groups.CreateGroup(ctx, other.ID, "Hoppers")
	require.NoError(t, err)
	story, err := f.svc.CreateDraft(ctx, f.author.ID, "Mine")
	require.NoError(t, err)

	_, err = f.svc.Publish(ctx, f.author.ID, story.ID, models.StoryPublished, &group.ID)
	assert.ErrorIs(t, err, services.ErrNotGroupMember)

	missing := uuid.New()
	_, err = f.svc.Publish(ctx, f.author.ID, story.ID, models.StoryPublished, &missing)
	assert.ErrorIs(t, err, services.ErrGroupNotFound)

	_, err = f.groups.CreateGroup(ctx, f.author.ID, "   ")
	assert.ErrorIs(t, err, services.ErrInvalidGroupName)
	f.storage.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExportPDF(t *testing.T) {
	f := newStoryFixture(t, "")
	ctx := context.Background()

	story, err := f.svc.CreateDraft(ctx, f.author.ID, "The Harbour")
	require.NoError(t, err)
	_, err = f.svc.Autosave(ctx, f.author.ID, story.ID, "The Harbour", "Boats came in at dawn.\n\nWe ran down to meet them.", 1)
	require.NoError(t, err)

	data, err := f.svc.ExportPDF(ctx, f.author.ID, story.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, 1, reader.NumPage())
	textReader, err := reader.GetPlainText()
	require.NoError(t, err)
	text, err := io.ReadAll(textReader)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Harbour")
	assert.Contains(t, string(text), "Boats")

	_, err = f.svc.ExportPDF(ctx, uuid.New(), story.ID)
	assert.ErrorIs(t, err, services.ErrStoryNotFound)
}
