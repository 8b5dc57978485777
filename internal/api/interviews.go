package api

import (
	"context"
	"net/http"
	"time"

	"memory_stitcher_go_backend/internal/auth"
	apperrors "memory_stitcher_go_backend/internal/errors"
	"memory_stitcher_go_backend/internal/models"
	"memory_stitcher_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultStoryTitle = "Untitled story"

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func sessionView(s *models.ChatSession) gin.H {
	return gin.H{
		"id":              s.ID,
		"story_id":        s.StoryID,
		"status":          s.Status,
		"last_error":      s.LastError,
		"preview_content": s.PreviewContent,
		"charged":         s.Charged,
		"created_at":      s.CreatedAt.Format(time.RFC3339),
		"updated_at":      s.UpdatedAt.Format(time.RFC3339),
	}
}

func messageViews(messages []models.Message) []*services.MessageView {
	views := make([]*services.MessageView, len(messages))
	for i := range messages {
		views[i] = services.NewMessageView(&messages[i])
	}
	return views
}

// requireUser returns the authenticated user or writes a 401.
func requireUser(c *gin.Context) (*models.User, bool) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		apperrors.HandleError(c, apperrors.New401Error())
		return nil, false
	}
	return user, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		apperrors.HandleError(c, apperrors.New400Error("Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func startInterviewHandler(interviews Interviews, stories Stories, greeting string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		var request struct {
			StoryID string `json:"story_id"`
			Title   string `json:"title"`
		}
		if err := c.ShouldBindJSON(&request); err != nil && c.Request.ContentLength > 0 {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}

		ctx := c.Request.Context()
		var storyID uuid.UUID
		createdDraft := false
		if request.StoryID != "" {
			id, err := uuid.Parse(request.StoryID)
			if err != nil {
				apperrors.HandleError(c, apperrors.New400Error("Invalid story_id"))
				return
			}
			story, err := stories.GetStory(ctx, user.ID, id)
			if err != nil {
				apperrors.HandleError(c, toHTTPError(err))
				return
			}
			if story.AuthorID != user.ID {
				apperrors.HandleError(c, toHTTPError(services.ErrStoryNotFound))
				return
			}
			storyID = story.ID
		} else {
			if !services.CanStart(services.CreditBalance{
				SubscriptionCredits: user.SubscriptionCredits,
				PurchasedCredits:    user.PurchasedCredits,
			}) {
				apperrors.HandleError(c, toHTTPError(services.ErrInsufficientCredits))
				return
			}
			title := request.Title
			if title == "" {
				title = defaultStoryTitle
			}
			story, err := stories.CreateDraft(ctx, user.ID, title)
			if err != nil {
				apperrors.HandleError(c, toHTTPError(err))
				return
			}
			storyID = story.ID
			createdDraft = true
		}

		session, err := interviews.StartSession(ctx, user.ID, storyID)
		if err != nil {
			if createdDraft {
				if derr := stories.DiscardDraft(context.WithoutCancel(ctx), user.ID, storyID); derr != nil {
					zerolog.Ctx(ctx).Warn().Err(derr).Str("storyID", storyID.String()).Msg("Failed to discard draft")
				}
			}
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		greetingMsg, err := interviews.Greet(ctx, user.ID, session.ID, greeting)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}

		response := gin.H{"session": sessionView(session), "messages": []*services.MessageView{}}
		if greetingMsg != nil {
			response["messages"] = []*services.MessageView{services.NewMessageView(greetingMsg)}
		}
		c.JSON(http.StatusCreated, response)
	}
}

func listInterviewsHandler(interviews Interviews) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		sessions, err := interviews.ListSessions(c.Request.Context(), user.ID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		views := make([]gin.H, len(sessions))
		for i := range sessions {
			views[i] = sessionView(&sessions[i])
		}
		c.JSON(http.StatusOK, gin.H{"sessions": views})
	}
}

func getInterviewHandler(interviews Interviews) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		sessionID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		session, messages, err := interviews.GetSession(c.Request.Context(), user.ID, sessionID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sessionView(session), "messages": messageViews(messages)})
	}
}

func submitMessageHandler(interviews Interviews) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		sessionID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var request struct {
			Content string `json:"content" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}

		reply, err := interviews.SubmitMessage(c.Request.Context(), user.ID, sessionID, request.Content)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"reply": services.NewMessageView(reply)})
	}
}

func finishInterviewHandler(interviews Interviews) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		sessionID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		session, err := interviews.Finish(c.Request.Context(), user.ID, sessionID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sessionView(session)})
	}
}

func recoverInterviewHandler(interviews Interviews) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		sessionID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		session, err := interviews.Recover(c.Request.Context(), user.ID, sessionID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sessionView(session)})
	}
}

func adoptPreviewHandler(stories Stories) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		sessionID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		story, err := stories.AdoptPreview(c.Request.Context(), user.ID, sessionID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"story": storyView(story)})
	}
}

func listFailedSessionsHandler(interviews Interviews) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := interviews.ListFailedSessions(c.Request.Context())
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		views := make([]gin.H, len(sessions))
		for i := range sessions {
			views[i] = sessionView(&sessions[i])
			views[i]["user_id"] = sessions[i].UserID
		}
		c.JSON(http.StatusOK, gin.H{"sessions": views})
	}
}
