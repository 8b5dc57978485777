package api

import (
	"fmt"
	"net/http"
	"time"

	apperrors "memory_stitcher_go_backend/internal/errors"
	"memory_stitcher_go_backend/internal/models"
	"memory_stitcher_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func storyView(s *models.Story) gin.H {
	return gin.H{
		"id":         s.ID,
		"title":      s.Title,
		"content":    s.Content,
		"author_id":  s.AuthorID,
		"group_id":   s.GroupID,
		"status":     s.Status,
		"version":    s.Version,
		"created_at": s.CreatedAt.Format(time.RFC3339),
		"updated_at": s.UpdatedAt.Format(time.RFC3339),
	}
}

func storyViews(stories []models.Story) []gin.H {
	views := make([]gin.H, len(stories))
	for i := range stories {
		views[i] = storyView(&stories[i])
	}
	return views
}

func createStoryHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		var request struct {
			Title string `json:"title"`
		}
		if err := c.ShouldBindJSON(&request); err != nil && c.Request.ContentLength > 0 {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		if request.Title == "" {
			request.Title = defaultStoryTitle
		}
		story, err := stories.CreateDraft(c.Request.Context(), user.ID, request.Title)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"story": storyView(story)})
	}
}

func listStoriesHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		list, err := stories.ListStories(c.Request.Context(), user.ID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"stories": storyViews(list)})
	}
}

func getStoryHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		storyID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		story, err := stories.GetStory(c.Request.Context(), user.ID, storyID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"story": storyView(story)})
	}
}

func autosaveStoryHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		storyID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var request struct {
			Title           string `json:"title"`
			Content         string `json:"content"`
			ExpectedVersion int    `json:"expected_version" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		story, err := stories.Autosave(c.Request.Context(), user.ID, storyID, request.Title, request.Content, request.ExpectedVersion)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"story": storyView(story)})
	}
}

func publishStoryHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		storyID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var request struct {
			Status  string `json:"status" binding:"required"`
			GroupID string `json:"group_id"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		var groupID *uuid.UUID
		if request.GroupID != "" {
			id, err := uuid.Parse(request.GroupID)
			if err != nil {
				apperrors.HandleError(c, apperrors.New400Error("Invalid group_id"))
				return
			}
			groupID = &id
		}
		story, err := stories.Publish(c.Request.Context(), user.ID, storyID, models.StoryStatus(request.Status), groupID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"story": storyView(story)})
	}
}

func exportStoryPDFHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		storyID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		pdf, err := stories.ExportPDF(c.Request.Context(), user.ID, storyID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="story-%s.pdf"`, storyID))
		c.Data(http.StatusOK, "application/pdf", pdf)
	}
}

func createGroupHandler(groups Groups) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		var request struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		group, err := groups.CreateGroup(c.Request.Context(), user.ID, request.Name)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"group": groupView(group)})
	}
}

func listGroupsHandler(groups Groups) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		list, err := groups.ListGroups(c.Request.Context(), user.ID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		views := make([]gin.H, len(list))
		for i := range list {
			views[i] = groupView(&list[i])
		}
		c.JSON(http.StatusOK, gin.H{"groups": views})
	}
}

func addGroupMemberHandler(groups Groups) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		groupID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var request struct {
			UserID string `json:"user_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		memberID, err := uuid.Parse(request.UserID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid user_id"))
			return
		}
		if err := groups.AddMember(c.Request.Context(), user.ID, groupID, memberID); err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Member added"})
	}
}

func listGroupStoriesHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		groupID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		list, err := stories.ListGroupStories(c.Request.Context(), user.ID, groupID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"stories": storyViews(list)})
	}
}

func listArchivedStoriesHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		names, err := stories.ListArchivedStories(c.Request.Context(), authorID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"objects": names})
	}
}

func groupView(g *models.FamilyGroup) gin.H {
	members := make([]gin.H, len(g.Members))
	for i, m := range g.Members {
		members[i] = gin.H{"user_id": m.UserID, "role": m.Role}
	}
	return gin.H{
		"id":       g.ID,
		"name":     g.Name,
		"owner_id": g.OwnerID,
		"members":  members,
	}
}

func getProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"profile": profileView(user)})
	}
}

func updateProfileHandler(profiles Profiles) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		var update services.ProfileUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		if update.BirthYear != nil && (*update.BirthYear < 1900 || *update.BirthYear > time.Now().Year()) {
			apperrors.HandleError(c, apperrors.New422Error("birth_year is out of range"))
			return
		}
		updated, err := profiles.UpdateProfile(c.Request.Context(), user.ID, update)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"profile": profileView(updated)})
	}
}

func profileView(u *models.User) gin.H {
	return gin.H{
		"id":                   u.ID,
		"email":                u.Email,
		"name":                 u.Name,
		"nickname":             u.Nickname,
		"birth_year":           u.BirthYear,
		"hometown":             u.Hometown,
		"subscription_tier":    u.SubscriptionTier,
		"subscription_credits": u.SubscriptionCredits,
		"purchased_credits":    u.PurchasedCredits,
		"is_admin":             u.IsAdmin,
	}
}
